package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"aibugbench/internal/sandbox/audit"
)

type fakeAuditEngine struct {
	auditErr   error
	overridden bool
	aborted    bool
	reason     string
}

func (f *fakeAuditEngine) Audit(context.Context) (audit.Report, error) {
	if f.auditErr != nil {
		return audit.Report{
			Checks:      []audit.Check{{Name: "socket-blocked", Capability: "network"}},
			GeneratedAt: time.Now(),
		}, f.auditErr
	}
	return audit.Report{OverallPass: true, GeneratedAt: time.Now()}, nil
}

func (f *fakeAuditEngine) Override(_ context.Context, reason string) error {
	f.overridden = true
	f.reason = reason
	return nil
}

func (f *fakeAuditEngine) Abort(context.Context) {
	f.aborted = true
}

func TestAuditGatePassedProceeds(t *testing.T) {
	eng := &fakeAuditEngine{}
	if !auditGate(context.Background(), eng, false, strings.NewReader("")) {
		t.Fatal("passing audit must allow execution")
	}
	if eng.aborted || eng.overridden {
		t.Error("passing audit must not abort or override")
	}
}

func TestAuditGateTrustedStillAbortsOnFailure(t *testing.T) {
	eng := &fakeAuditEngine{auditErr: errors.New("audit failed")}
	// Even with a confirming reader, trusted mode must never cross a
	// failed audit on its own.
	if auditGate(context.Background(), eng, true, strings.NewReader("override\n")) {
		t.Fatal("trusted mode must not proceed past a failed audit")
	}
	if eng.overridden {
		t.Error("trusted mode must not override a failed audit")
	}
	if !eng.aborted {
		t.Error("failed audit under trusted mode must abort the engine")
	}
}

func TestAuditGateOperatorOverride(t *testing.T) {
	eng := &fakeAuditEngine{auditErr: errors.New("audit failed")}
	if !auditGate(context.Background(), eng, false, strings.NewReader("override\n")) {
		t.Fatal("typed override must allow execution")
	}
	if !eng.overridden {
		t.Error("typed override must call Override on the engine")
	}
	if eng.reason == "" {
		t.Error("override must carry a reason")
	}
	if eng.aborted {
		t.Error("override path must not abort")
	}
}

func TestAuditGateOperatorDeclines(t *testing.T) {
	eng := &fakeAuditEngine{auditErr: errors.New("audit failed")}
	if auditGate(context.Background(), eng, false, strings.NewReader("no\n")) {
		t.Fatal("anything but 'override' must abort")
	}
	if eng.overridden {
		t.Error("declined override must not call Override")
	}
	if !eng.aborted {
		t.Error("declined override must abort the engine")
	}
}

func TestAuditGateEOFAborts(t *testing.T) {
	eng := &fakeAuditEngine{auditErr: errors.New("audit failed")}
	if auditGate(context.Background(), eng, false, strings.NewReader("")) {
		t.Fatal("EOF on the confirmation stream must abort")
	}
	if !eng.aborted {
		t.Error("EOF must abort the engine")
	}
}
