package authz

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DenyReason classifies why a request was refused. Callers must be able to
// tell "forbidden" from "retry later", and visibility omissions from both.
type DenyReason string

const (
	ReasonNone            DenyReason = ""
	ReasonUnauthenticated DenyReason = "unauthenticated"
	ReasonTenantMismatch  DenyReason = "tenant_mismatch"
	ReasonNoPermission    DenyReason = "no_permission"
	ReasonCycleLocked     DenyReason = "cycle_locked"
	ReasonRateLimited     DenyReason = "rate_limited"
	// ReasonNotVisible means the record must be rendered as absent, never as
	// a 403 that confirms its existence.
	ReasonNotVisible DenyReason = "not_visible"
)

// Decision is the outcome of one authorization evaluation.
type Decision struct {
	Allow  bool
	Reason DenyReason
	// Bypass is set when an elevated path was taken on an ALLOW: a superuser
	// read or a governance-lock bypass. Bypasses are audited.
	Bypass string
}

const (
	BypassSuperuserRead = "superuser_read"
	BypassCycleLock     = "cycle_lock"
)

// DecisionEvent is what the engine hands to the audit side channel for every
// DENY and every privileged bypass.
type DecisionEvent struct {
	PrincipalID int64
	Action      Action
	ResourceID  uuid.UUID
	TenantID    uuid.UUID
	Decision    string
	Reason      string
	At          time.Time
}

// DecisionRecorder receives decision events. Recording is write-only and
// never gates a decision; failures are logged and dropped.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, ev DecisionEvent)
}

// DecisionMetrics counts evaluated decisions, labeled by outcome and reason.
type DecisionMetrics interface {
	ObserveDecision(decision, reason string)
}

// Engine evaluates the gate chain: tenant isolation, role permission,
// governance lock, mutation rate limit, per-record visibility. Evaluation
// short-circuits at the first failing gate. The engine holds no per-request
// state and is safe for concurrent use.
type Engine struct {
	store    AssignmentStore
	limiter  *MutationLimiter
	recorder DecisionRecorder
	metrics  DecisionMetrics
	logger   *slog.Logger
	now      func() time.Time
}

// EngineConfig collects the engine's collaborators. Recorder and Metrics are
// optional.
type EngineConfig struct {
	Store    AssignmentStore
	Limiter  *MutationLimiter
	Recorder DecisionRecorder
	Metrics  DecisionMetrics
	Logger   *slog.Logger
}

// NewEngine constructs an Engine.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    cfg.Store,
		limiter:  cfg.Limiter,
		recorder: cfg.Recorder,
		metrics:  cfg.Metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Request describes one evaluation. Cycle carries the status of the cycle the
// resource is dated in; leave it empty when the resource is not cycle-bound.
type Request struct {
	Principal Principal
	Action    Action
	Resource  Resource
	Cycle     CycleStatus
	// Parent resolves a child's objective when Resource.ParentID is set.
	Parent ParentLookup
	// RateLimited marks the endpoint as one of the sensitive composite
	// mutation endpoints the limiter applies to.
	RateLimited bool
}

// Authorize runs the gate chain and returns the decision. The returned error
// is only ever an infrastructure failure (assignment lookup); every policy
// outcome is expressed in the Decision.
func (e *Engine) Authorize(ctx context.Context, req Request) (Decision, error) {
	p := req.Principal

	if p.Anonymous() {
		return e.deny(ctx, req, ReasonUnauthenticated), nil
	}

	// Tenant isolation runs before any other rule. Superuser read is the one
	// sanctioned cross-tenant path.
	crossTenant := p.TenantID != req.Resource.Scope.TenantID
	if crossTenant && !(p.Superuser && req.Action.Read()) {
		return e.deny(ctx, req, ReasonTenantMismatch), nil
	}

	assignments, err := e.store.ListAssignments(ctx, p.ID)
	if err != nil {
		return Decision{}, err
	}

	if !permitted(p, assignments, req.Action, req.Resource.Scope) {
		return e.deny(ctx, req, ReasonNoPermission), nil
	}

	var bypass string
	if req.Action.Mutation() {
		if req.Cycle == CycleLocked {
			if cycleBlocks(req.Cycle, assignments, req.Resource.Scope) {
				return e.deny(ctx, req, ReasonCycleLocked), nil
			}
			bypass = BypassCycleLock
		}
		if req.RateLimited && !e.limiter.Allow(p.ID) {
			return e.deny(ctx, req, ReasonRateLimited), nil
		}
	}

	if req.Action.Read() {
		if !visible(p, assignments, req.Resource, req.Parent) {
			return e.deny(ctx, req, ReasonNotVisible), nil
		}
		if p.Superuser {
			bypass = BypassSuperuserRead
		}
	}

	d := Decision{Allow: true, Bypass: bypass}
	e.observe(ctx, req, d)
	return d, nil
}

// FilterVisible returns the subset of candidates readable by the principal,
// preserving order. It is applied before totals are computed and before any
// page is sliced, so counts never include invisible records. The listing
// itself must already have passed Authorize for ActionView on its scope.
func (e *Engine) FilterVisible(ctx context.Context, p Principal, candidates []Resource, parent ParentLookup) ([]Resource, error) {
	assignments, err := e.store.ListAssignments(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	out := make([]Resource, 0, len(candidates))
	for _, res := range candidates {
		if p.TenantID != res.Scope.TenantID && !p.Superuser {
			continue
		}
		if visible(p, assignments, res, parent) {
			out = append(out, res)
		}
	}
	return out, nil
}

func (e *Engine) deny(ctx context.Context, req Request, reason DenyReason) Decision {
	d := Decision{Allow: false, Reason: reason}
	e.observe(ctx, req, d)
	return d
}

func (e *Engine) observe(ctx context.Context, req Request, d Decision) {
	outcome := "deny"
	if d.Allow {
		outcome = "allow"
	}
	if e.metrics != nil {
		reason := string(d.Reason)
		if d.Allow {
			reason = d.Bypass
		}
		e.metrics.ObserveDecision(outcome, reason)
	}
	// Only denials and privileged bypasses hit the audit trail.
	if e.recorder == nil || (d.Allow && d.Bypass == "") {
		return
	}
	reason := string(d.Reason)
	if d.Allow {
		reason = d.Bypass
	}
	e.recorder.RecordDecision(ctx, DecisionEvent{
		PrincipalID: req.Principal.ID,
		Action:      req.Action,
		ResourceID:  req.Resource.ID,
		TenantID:    req.Resource.Scope.TenantID,
		Decision:    outcome,
		Reason:      reason,
		At:          e.now(),
	})
}
