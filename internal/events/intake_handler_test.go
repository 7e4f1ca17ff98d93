package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"loan-underwriting-orchestrator/internal/domain"
)

type fakeObjects map[string][]byte

func (f fakeObjects) GetObject(_ context.Context, key string) ([]byte, error) {
	b, ok := f[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return b, nil
}

type fakeStarter struct {
	started []domain.Application
	err     error
}

func (f *fakeStarter) Start(_ context.Context, app domain.Application) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.started = append(f.started, app)
	return "loan-" + app.ApplicantID, nil
}

func TestIntakeHandlerStartsWorkflow(t *testing.T) {
	starter := &fakeStarter{}
	h := &IntakeHandler{
		Objects: fakeObjects{"applications/A1.json": []byte(`{"name":"Ana","amount":100000,"income":50000,"expenses":3000}`)},
		Starter: starter,
		Logger:  zaptest.NewLogger(t),
	}

	err := h.Handle(context.Background(), IntakeEvent{ApplicantID: "A1", ObjectKey: "applications/A1.json"})
	require.NoError(t, err)
	require.Len(t, starter.started, 1)
	assert.Equal(t, "A1", starter.started[0].ApplicantID)
	assert.Equal(t, 100000.0, starter.started[0].Amount)
}

func TestIntakeHandlerSkipsInvalidObjects(t *testing.T) {
	starter := &fakeStarter{}
	h := &IntakeHandler{
		Objects: fakeObjects{
			"applications/bad.json":  []byte(`{not json`),
			"applications/zero.json": []byte(`{"name":"Z","amount":0,"income":1}`),
		},
		Starter: starter,
		Logger:  zaptest.NewLogger(t),
	}

	require.NoError(t, h.Handle(context.Background(), IntakeEvent{ApplicantID: "bad", ObjectKey: "applications/bad.json"}))
	require.NoError(t, h.Handle(context.Background(), IntakeEvent{ApplicantID: "zero", ObjectKey: "applications/zero.json"}))
	assert.Empty(t, starter.started)
}

func TestIntakeHandlerPropagatesStartFailure(t *testing.T) {
	h := &IntakeHandler{
		Objects: fakeObjects{"applications/A1.json": []byte(`{"applicant_id":"A1","name":"Ana","amount":1,"income":1}`)},
		Starter: &fakeStarter{err: errors.New("temporal unavailable")},
		Logger:  zaptest.NewLogger(t),
	}
	require.Error(t, h.Handle(context.Background(), IntakeEvent{ObjectKey: "applications/A1.json"}))
	require.Error(t, h.Handle(context.Background(), IntakeEvent{ObjectKey: "applications/missing.json"}))
}
