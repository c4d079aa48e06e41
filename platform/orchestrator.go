package platform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/appsyncctl/config"
	"github.com/GoCodeAlone/appsyncctl/observability/tracing"
)

// Orchestrator runs the fixed reconciliation pipeline for one API:
// API, role, data sources, schema, resolvers, functions and API keys,
// followed by removal of obsolete resolvers, functions, data sources and
// API keys. The snapshot is saved only after every stage succeeded.
type Orchestrator struct {
	drivers  Drivers
	store    StateStore
	observer Observer
	tracer   *tracing.PipelineTracer
	logger   *slog.Logger
	now      func() time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithObserver adds an observer that receives every run event.
func WithObserver(obs Observer) OrchestratorOption {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithTracer sets the tracer used for run and stage spans.
func WithTracer(t *tracing.PipelineTracer) OrchestratorOption {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithLogger sets the logger for run-level messages.
func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock overrides the time source used for snapshot timestamps.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an Orchestrator over the given drivers and store.
func NewOrchestrator(drivers Drivers, store StateStore, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		drivers: drivers,
		store:   store,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.observer == nil {
		o.observer = NewLogObserver(o.logger)
	}
	if o.tracer == nil {
		o.tracer = tracing.NewPipelineTracer(nil)
	}
	return o
}

type stageFunc struct {
	stage Stage
	run   func(ctx context.Context) error
}

// Deploy converges the remote API to spec. Configuration errors are returned
// before any remote call. A failing stage aborts the run and leaves the
// stored snapshot untouched.
func (o *Orchestrator) Deploy(ctx context.Context, spec *config.Spec) (*Result, error) {
	start := o.now()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	desired, err := config.Resolve(spec, config.NewLoader(spec.BasePath))
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := o.logger.With("run_id", runID, "api", spec.Name)
	tally := NewTally()
	obs := Observers{o.observer, tally}

	ctx, span := o.tracer.StartRun(ctx, "deploy", spec.Name, runID)
	var runErr error
	defer func() { o.tracer.End(span, runErr) }()

	prior, err := o.store.Load(ctx, spec.Name)
	if err != nil {
		runErr = fmt.Errorf("load state: %w", err)
		return nil, runErr
	}

	var (
		api       APIRecord
		scoped    = &Snapshot{}
		role      *RoleRecord
		sources   []DataSourceRecord
		checksum  string
		resolvers []ResolverRecord
		functions []FunctionRecord
		keys      []APIKeyRecord
	)

	stages := []stageFunc{
		{StageAPI, func(ctx context.Context) (err error) {
			api, err = o.drivers.API.Reconcile(ctx, obs, desired, prior)
			if err == nil && prior.APIID == api.ID {
				// Child refs recorded against another API are meaningless here.
				scoped = prior
			}
			return err
		}},
		{StageRole, func(ctx context.Context) (err error) {
			role, err = o.drivers.Role.Provision(ctx, obs, desired, prior.Role)
			return err
		}},
		{StageDataSources, func(ctx context.Context) (err error) {
			roleArn := ""
			if role != nil {
				roleArn = role.RoleArn
			}
			bound := make([]config.DataSource, len(desired.DataSources))
			for i, ds := range desired.DataSources {
				bound[i] = ds.WithServiceRole(roleArn)
			}
			sources, err = o.drivers.DataSources.Reconcile(ctx, obs, api.ID, desired.Region, bound)
			return err
		}},
		{StageSchema, func(ctx context.Context) (err error) {
			checksum, err = o.drivers.Schema.Apply(ctx, obs, api.ID, desired.Schema, scoped.SchemaChecksum)
			return err
		}},
		{StageResolvers, func(ctx context.Context) (err error) {
			resolvers, err = o.drivers.Resolvers.Reconcile(ctx, obs, api.ID, desired.Resolvers, sources)
			return err
		}},
		{StageFunctions, func(ctx context.Context) (err error) {
			functions, err = o.drivers.Functions.Reconcile(ctx, obs, api.ID, desired.Functions)
			return err
		}},
		{StageAPIKeys, func(ctx context.Context) (err error) {
			keys, err = o.drivers.APIKeys.Reconcile(ctx, obs, api.ID, desired.APIKeys, scoped.APIKeys)
			return err
		}},
		{StagePruneResolvers, func(ctx context.Context) error {
			return o.drivers.Resolvers.RemoveObsolete(ctx, obs, api.ID, desired.Resolvers, scoped.Resolvers)
		}},
		{StagePruneFunctions, func(ctx context.Context) error {
			return o.drivers.Functions.RemoveObsolete(ctx, obs, api.ID, desired.Functions, scoped.Functions)
		}},
		{StagePruneDataSources, func(ctx context.Context) error {
			return o.drivers.DataSources.RemoveObsolete(ctx, obs, api.ID, desired.DataSources, scoped.DataSources)
		}},
		{StagePruneAPIKeys, func(ctx context.Context) error {
			return o.drivers.APIKeys.RemoveObsolete(ctx, obs, api.ID, keys, scoped.APIKeys)
		}},
		{StagePruneRole, func(ctx context.Context) error {
			if prior.Role == nil || prior.Role.RoleArn == "" {
				return nil
			}
			if role != nil && role.RoleArn == prior.Role.RoleArn {
				return nil
			}
			return o.drivers.Role.Remove(ctx, obs, *prior.Role)
		}},
	}

	if runErr = o.runStages(ctx, obs, stages); runErr != nil {
		logger.Error("deploy aborted, state not saved", "error", runErr)
		return nil, runErr
	}

	snap := &Snapshot{
		APIID:          api.ID,
		ARN:            api.ARN,
		URIs:           api.URIs,
		IsAPICreator:   api.Owned,
		Region:         desired.Region,
		SchemaChecksum: checksum,
		DataSources:    make([]DataSourceRef, 0, len(sources)),
		Resolvers:      make([]ResolverRef, 0, len(resolvers)),
		Functions:      make([]FunctionRef, 0, len(functions)),
		APIKeys:        make([]APIKeyRef, 0, len(keys)),
		RunID:          runID,
		UpdatedAt:      o.now().UTC(),
	}
	for _, s := range sources {
		snap.DataSources = append(snap.DataSources, DataSourceRef{Name: s.Name, Type: s.Type})
	}
	for _, r := range resolvers {
		snap.Resolvers = append(snap.Resolvers, ResolverRef{Type: r.Type, Field: r.Field})
	}
	for _, f := range functions {
		snap.Functions = append(snap.Functions, FunctionRef{Name: f.Name, DataSource: f.DataSource, FunctionID: f.ID})
	}
	for _, k := range keys {
		snap.APIKeys = append(snap.APIKeys, APIKeyRef{Name: k.Name, ID: k.ID})
	}
	if role != nil && !role.External {
		snap.Role = role
	}

	if err := o.store.Save(ctx, spec.Name, snap); err != nil {
		runErr = fmt.Errorf("save state: %w", err)
		return nil, runErr
	}

	res := &Result{
		RunID:    runID,
		API:      api,
		Role:     role,
		APIKeys:  keys,
		Actions:  tally.Counts(),
		Duration: o.now().Sub(start),
	}
	logger.Info("deploy complete", "api_id", api.ID, "changed", res.Changed(), "elapsed", res.Duration)
	return res, nil
}

// Remove tears down what the stored snapshot records. An API created by
// this tool is deleted outright; an adopted API keeps standing and only its
// recorded children are removed. The auto-provisioned role goes last.
func (o *Orchestrator) Remove(ctx context.Context, spec *config.Spec) error {
	runID := uuid.NewString()
	logger := o.logger.With("run_id", runID, "api", spec.Name)
	obs := Observer(o.observer)

	ctx, span := o.tracer.StartRun(ctx, "remove", spec.Name, runID)
	var runErr error
	defer func() { o.tracer.End(span, runErr) }()

	prior, err := o.store.Load(ctx, spec.Name)
	if err != nil {
		runErr = fmt.Errorf("load state: %w", err)
		return runErr
	}
	if prior.Empty() {
		obs.Notice(ctx, "nothing recorded, nothing to remove", "api", spec.Name)
		return nil
	}

	apiID := prior.APIID
	var stages []stageFunc
	if prior.IsAPICreator && apiID != "" {
		stages = append(stages, stageFunc{StageTeardownAPI, func(ctx context.Context) error {
			return o.drivers.API.Delete(ctx, obs, apiID)
		}})
	} else if apiID != "" {
		stages = append(stages,
			stageFunc{StagePruneResolvers, func(ctx context.Context) error {
				return o.drivers.Resolvers.RemoveRecorded(ctx, obs, apiID, prior.Resolvers)
			}},
			stageFunc{StagePruneFunctions, func(ctx context.Context) error {
				return o.drivers.Functions.RemoveRecorded(ctx, obs, apiID, prior.Functions)
			}},
			stageFunc{StagePruneDataSources, func(ctx context.Context) error {
				return o.drivers.DataSources.RemoveRecorded(ctx, obs, apiID, prior.DataSources)
			}},
			stageFunc{StagePruneAPIKeys, func(ctx context.Context) error {
				return o.drivers.APIKeys.RemoveRecorded(ctx, obs, apiID, prior.APIKeys)
			}},
		)
	}
	if prior.Role != nil && prior.Role.RoleArn != "" {
		role := *prior.Role
		stages = append(stages, stageFunc{StagePruneRole, func(ctx context.Context) error {
			return o.drivers.Role.Remove(ctx, obs, role)
		}})
	}

	if runErr = o.runStages(ctx, obs, stages); runErr != nil {
		logger.Error("remove aborted, state kept", "error", runErr)
		return runErr
	}
	if err := o.store.Delete(ctx, spec.Name); err != nil {
		runErr = fmt.Errorf("delete state: %w", err)
		return runErr
	}
	logger.Info("remove complete", "api_id", apiID, "api_deleted", prior.IsAPICreator)
	return nil
}

func (o *Orchestrator) runStages(ctx context.Context, obs Observer, stages []stageFunc) error {
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		sctx, span := o.tracer.StartStage(ctx, string(s.stage))
		obs.StageStarted(sctx, s.stage)
		start := time.Now()
		err := s.run(sctx)
		obs.StageFinished(sctx, s.stage, time.Since(start), err)
		o.tracer.End(span, err)
		if err != nil {
			return &StageError{Stage: s.stage, Err: err}
		}
	}
	return nil
}
