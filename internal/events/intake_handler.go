package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"loan-underwriting-orchestrator/internal/domain"
)

type ObjectReader interface {
	GetObject(ctx context.Context, objectKey string) ([]byte, error)
}

type ApplicationStarter interface {
	Start(ctx context.Context, app domain.Application) (string, error)
}

// IntakeHandler turns intake objects into workflow starts. Malformed objects
// are logged and skipped; only starter failures stop the listener.
type IntakeHandler struct {
	Objects ObjectReader
	Starter ApplicationStarter
	Logger  *zap.Logger
}

var errSkip = errors.New("skip intake object")

func (h *IntakeHandler) Handle(ctx context.Context, ev IntakeEvent) error {
	app, err := h.load(ctx, ev)
	if errors.Is(err, errSkip) {
		return nil
	}
	if err != nil {
		return err
	}

	workflowID, err := h.Starter.Start(ctx, app)
	if err != nil {
		return fmt.Errorf("start workflow for %s: %w", ev.ObjectKey, err)
	}
	h.Logger.Info("application workflow started from intake",
		zap.String("object_key", ev.ObjectKey),
		zap.String("applicant_id", app.ApplicantID),
		zap.String("workflow_id", workflowID),
	)
	return nil
}

func (h *IntakeHandler) load(ctx context.Context, ev IntakeEvent) (domain.Application, error) {
	raw, err := h.Objects.GetObject(ctx, ev.ObjectKey)
	if err != nil {
		return domain.Application{}, fmt.Errorf("read intake object %s: %w", ev.ObjectKey, err)
	}

	var app domain.Application
	if err := json.Unmarshal(raw, &app); err != nil {
		h.Logger.Warn("intake object is not a valid application", zap.String("object_key", ev.ObjectKey), zap.Error(err))
		return domain.Application{}, errSkip
	}
	if strings.TrimSpace(app.ApplicantID) == "" {
		app.ApplicantID = ev.ApplicantID
	}
	if res := domain.ValidateApplication(app); !domain.ValidationPassed(res) {
		h.Logger.Warn("intake application failed validation",
			zap.String("object_key", ev.ObjectKey),
			zap.Strings("failed_rules", res.FailedRules),
		)
		return domain.Application{}, errSkip
	}
	return app, nil
}
