package dispatch

import (
	"errors"
	"strings"
	"testing"

	"costume-portal/internal/core/domain/models"
)

func TestRegistryCoversEveryStageOnBothChannels(t *testing.T) {
	r, err := NewTemplateRegistry()
	if err != nil {
		t.Fatalf("NewTemplateRegistry: %v", err)
	}

	data := TemplateData{OrderNumber: "CG-7", StageName: "Sewing"}
	for _, stage := range models.StageSequence {
		for _, ch := range []models.Channel{models.ChannelEmail, models.ChannelSMS} {
			msg, err := r.Render(stage, ch, data)
			if err != nil {
				t.Errorf("Render(%s, %s): %v", stage, ch, err)
				continue
			}
			if !strings.Contains(msg.Body, "CG-7") {
				t.Errorf("Render(%s, %s) body missing order number: %q", stage, ch, msg.Body)
			}
			if ch == models.ChannelEmail && msg.Subject == "" {
				t.Errorf("Render(%s, email) produced empty subject", stage)
			}
			if ch == models.ChannelSMS && msg.Subject != "" {
				t.Errorf("Render(%s, sms) produced a subject: %q", stage, msg.Subject)
			}
		}
	}
}

func TestRenderRevertWording(t *testing.T) {
	r, err := NewTemplateRegistry()
	if err != nil {
		t.Fatalf("NewTemplateRegistry: %v", err)
	}

	msg, err := r.Render(models.StageSewing, models.ChannelEmail, TemplateData{
		OrderNumber: "CG-7",
		StageName:   "Sewing",
		IsRevert:    true,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(msg.Body, "moved back") {
		t.Errorf("revert body does not read as a revert: %q", msg.Body)
	}
}

func TestRenderUnknownChannelFails(t *testing.T) {
	r, err := NewTemplateRegistry()
	if err != nil {
		t.Fatalf("NewTemplateRegistry: %v", err)
	}

	_, err = r.Render(models.StageSewing, "pigeon", TemplateData{})
	if !errors.Is(err, models.ErrorRenderFailure) {
		t.Errorf("err = %v, want ErrorRenderFailure", err)
	}
}

func TestStageLabel(t *testing.T) {
	cases := map[models.Stage]string{
		models.StageConsultation: "Consultation",
		models.StageFirstFitting: "First Fitting",
		models.StageQualityCheck: "Quality Check",
	}
	for stage, want := range cases {
		if got := stageLabel(stage); got != want {
			t.Errorf("stageLabel(%s) = %q, want %q", stage, got, want)
		}
	}
}
