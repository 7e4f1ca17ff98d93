package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"loan-underwriting-orchestrator/internal/domain"
)

const subject = "Loan Application Status Update"

// SESService is the subset of the SES client the notifier calls.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Notifier e-mails applicants about their application. Without a sender
// address it only logs the message.
type Notifier struct {
	ses    SESService
	sender string
	logger *zap.Logger
}

func New(sesClient SESService, sender string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{ses: sesClient, sender: sender, logger: logger}
}

// NewFromRegion loads the default AWS credential chain. sender may be empty,
// in which case no AWS config is loaded at all.
func NewFromRegion(ctx context.Context, region, sender string, logger *zap.Logger) (*Notifier, error) {
	if sender == "" {
		return New(nil, "", logger), nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return New(ses.NewFromConfig(cfg), sender, logger), nil
}

// Notify sends the status message for n. view supplies the final decision
// when the application has one.
func (n *Notifier) Notify(ctx context.Context, note domain.Notification, view domain.FinalResultView) error {
	body := Body(note, view)
	if n.ses == nil || n.sender == "" {
		n.logger.Info("notification not sent, no sender configured",
			zap.String("workflow_id", note.WorkflowID),
			zap.String("to", note.Email),
			zap.String("body", body),
		)
		return nil
	}

	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{note.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.sender),
	})
	if err != nil {
		return fmt.Errorf("send notification for %s: %w", note.WorkflowID, err)
	}
	n.logger.Info("notification sent", zap.String("workflow_id", note.WorkflowID), zap.String("to", note.Email))
	return nil
}

func Body(note domain.Notification, view domain.FinalResultView) string {
	var b strings.Builder
	name := note.ApplicantName
	if name == "" {
		name = "applicant"
	}
	fmt.Fprintf(&b, "Dear %s,\n\n", name)
	if view.Ready() {
		fmt.Fprintf(&b, "A decision has been made on your loan application %s: %s.\n", note.WorkflowID, strings.ReplaceAll(view.Record.FinalDecision, "_", " "))
	} else {
		fmt.Fprintf(&b, "Your loan application %s is still being processed.\n", note.WorkflowID)
	}
	b.WriteString("\nThis is an automated message.\n")
	return b.String()
}
