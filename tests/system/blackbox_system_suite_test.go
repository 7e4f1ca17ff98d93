//go:build system

package system_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestLoanUnderwritingSystem(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Loan Underwriting System Suite")
}
