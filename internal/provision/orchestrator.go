package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ACTRIS-CCRES/infra-hkd/internal/catalog"
	"github.com/ACTRIS-CCRES/infra-hkd/internal/grafana"
)

// Mode selects how a pass converges remote state.
type Mode string

const (
	// ModeMerge patches matching remote entries and appends the rest,
	// preserving everything created out-of-band. The default.
	ModeMerge Mode = "merge"

	// ModeReplace deletes each desired folder's rule configuration and
	// rebuilds it from the catalog alone. Used for full resyncs.
	ModeReplace Mode = "replace"
)

// Pass states, in order. A pass ends in StateDone or StateFailed.
const (
	StateIdle        = "idle"
	StateBuilding    = "building"
	StateFetching    = "fetching"
	StateReconciling = "reconciling"
	StatePushing     = "pushing"
	StateDone        = "done"
	StateFailed      = "failed"
)

// Categories a pass reconciles. Folders come first; the rest are
// independent of each other and push concurrently.
const (
	CategoryFolders      = "folders"
	CategoryAlertmanager = "alertmanager"
	CategoryDashboards   = "dashboards"
	CategoryRuleGroups   = "rule-groups"
)

// Event is one pass progress notification, delivered to the Notifier.
type Event struct {
	Pass     string    `json:"pass"`
	State    string    `json:"state"`
	Category string    `json:"category,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	Error    string    `json:"error,omitempty"`
	Time     time.Time `json:"time"`
}

// Notifier receives pass progress events. Implementations must not block.
type Notifier interface {
	Notify(Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}

// CategoryResult is the outcome of one category within a pass.
type CategoryResult struct {
	Category string `json:"category"`
	Key      string `json:"key,omitempty"`
	Pushes   int    `json:"pushes"`
	Error    string `json:"error,omitempty"`
}

// PassResult is the record of one provisioning pass. Category errors do not
// cascade: a failed category leaves the others converging and the next pass
// picks up the difference.
type PassResult struct {
	ID         string           `json:"id"`
	Mode       Mode             `json:"mode"`
	State      string           `json:"state"`
	Grafana    grafana.Health   `json:"grafana"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at,omitempty"`
	Categories []CategoryResult `json:"categories"`

	mu sync.Mutex
}

func (r *PassResult) record(c CategoryResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Categories = append(r.Categories, c)
}

// snapshot returns a detached copy safe to read and marshal while the pass
// is still mutating the original.
func (r *PassResult) snapshot() *PassResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &PassResult{
		ID:         r.ID,
		Mode:       r.Mode,
		State:      r.State,
		Grafana:    r.Grafana,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Categories: append([]CategoryResult(nil), r.Categories...),
	}
}

// Failed reports whether any category ended in error.
func (r *PassResult) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Categories {
		if c.Error != "" {
			return true
		}
	}
	return false
}

// Provisioner runs provisioning passes against one Grafana instance.
//
// Rule-group pushes for different folders run concurrently; pushes into the
// same folder are serialized with a per-folder mutex, because a folder's
// rule configuration is one remote document identity and interleaved
// read-modify-write cycles would race. There is no optimistic-concurrency
// token on the remote API — last write wins.
type Provisioner struct {
	client   *grafana.Client
	cfg      BuildConfig
	snapshot func() *catalog.Snapshot
	notifier Notifier

	mu       sync.Mutex
	folderMu map[string]*sync.Mutex
	last     *PassResult
}

// New creates a Provisioner. snapshot is called once per pass to read the
// catalog; notifier may be nil.
func New(client *grafana.Client, cfg BuildConfig, snapshot func() *catalog.Snapshot, notifier Notifier) *Provisioner {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Provisioner{
		client:   client,
		cfg:      cfg,
		snapshot: snapshot,
		notifier: notifier,
		folderMu: make(map[string]*sync.Mutex),
	}
}

// Last returns a copy of the most recent pass result, or nil before the
// first pass. The copy is detached: it stays consistent while the pass it
// describes is still running.
func (p *Provisioner) Last() *PassResult {
	p.mu.Lock()
	res := p.last
	p.mu.Unlock()
	if res == nil {
		return nil
	}
	return res.snapshot()
}

// lockFolder returns the mutex serializing writes to one folder's document.
func (p *Provisioner) lockFolder(name string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.folderMu[name]
	if !ok {
		m = &sync.Mutex{}
		p.folderMu[name] = m
	}
	return m
}

func (p *Provisioner) transition(res *PassResult, state string) {
	res.mu.Lock()
	res.State = state
	res.mu.Unlock()
	p.notifier.Notify(Event{Pass: res.ID, State: state, Time: time.Now().UTC()})
}

// Run executes one provisioning pass: build, fetch, reconcile, push.
// A build failure aborts before any network call. Fetch and push failures
// are recorded per category and do not stop the other categories. Run
// returns an error only when the whole pass could not proceed.
func (p *Provisioner) Run(ctx context.Context, mode Mode) (*PassResult, error) {
	res := &PassResult{
		ID:        uuid.NewString(),
		Mode:      mode,
		State:     StateIdle,
		StartedAt: time.Now().UTC(),
	}
	p.mu.Lock()
	p.last = res
	p.mu.Unlock()

	slog.Info("provision: pass starting", "pass", res.ID, "mode", mode)

	p.transition(res, StateBuilding)
	desired, err := Build(p.snapshot(), p.cfg)
	if err != nil {
		finished := time.Now().UTC()
		res.mu.Lock()
		res.State = StateFailed
		res.FinishedAt = finished
		res.mu.Unlock()
		p.notifier.Notify(Event{Pass: res.ID, State: StateFailed, Error: err.Error(), Time: finished})
		return res, err
	}

	p.transition(res, StateFetching)
	health := p.client.Probe(ctx)
	res.mu.Lock()
	res.Grafana = health
	res.mu.Unlock()
	if !health.Reachable {
		slog.Warn("provision: grafana metrics probe failed — attempting the pass anyway",
			"pass", res.ID, "err", health.Error)
	}

	rulerDoc, rulerErr := p.client.FetchRuleGroups(ctx)
	amDoc, amErr := p.client.FetchAlertmanager(ctx)
	hits, searchErr := p.client.SearchDashboards(ctx)

	p.transition(res, StateReconciling)

	// Reconciliation is pure: new documents are computed here, network
	// writes all happen in the push phase below.
	groupsByFolder := make(map[string][]grafana.RuleGroup)
	if rulerErr == nil {
		for folder, desiredGroups := range desired.RuleGroups {
			if mode == ModeReplace {
				groupsByFolder[folder] = ReplaceRuleGroups(desiredGroups)
				continue
			}
			merged := MergeRuleGroups(rulerDoc[folder], desiredGroups)
			groupsByFolder[folder] = ChangedGroups(rulerDoc[folder], merged)
		}
	}
	amChanged := false
	if amErr == nil {
		before := cloneDocument(amDoc)
		for _, cp := range desired.ContactPoints {
			MergeContactPoint(amDoc, cp)
		}
		for _, route := range desired.Routes {
			MergeRoute(amDoc, route)
		}
		amChanged = !jsonEqual(before, amDoc)
	}

	p.transition(res, StatePushing)

	// Folders first: every other category pushes into them. Creation is
	// idempotent — soft conflicts are success — so create unconditionally.
	folderUIDs := p.pushFolders(ctx, res, desired.Folders)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.pushAlertmanager(ctx, res, amDoc, amErr, amChanged)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.pushDashboards(ctx, res, desired, folderUIDs, hits, searchErr, mode)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.pushRuleGroups(ctx, res, desired, groupsByFolder, rulerErr, mode)
	}()

	wg.Wait()

	finished := time.Now().UTC()
	state := StateDone
	if res.Failed() {
		state = StateFailed
	}
	res.mu.Lock()
	res.FinishedAt = finished
	res.State = state
	res.mu.Unlock()
	p.notifier.Notify(Event{Pass: res.ID, State: state, Time: finished})
	slog.Info("provision: pass finished", "pass", res.ID, "state", state)
	return res, nil
}

// pushFolders creates every desired folder and returns the refreshed
// title→UID mapping needed by the dashboard category.
func (p *Provisioner) pushFolders(ctx context.Context, res *PassResult, folders []grafana.Folder) map[string]string {
	pushes := 0
	var firstErr error
	for _, f := range folders {
		if err := p.client.CreateFolder(ctx, f); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			slog.Error("provision: create folder failed", "folder", f.Title, "err", err)
			continue
		}
		pushes++
	}

	uids := make(map[string]string)
	remote, err := p.client.FetchFolders(ctx)
	if err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("resolve folder uids: %w", err)
		}
	} else {
		for _, f := range remote {
			uids[f.Title] = f.UID
		}
	}

	p.finishCategory(res, CategoryFolders, "", pushes, firstErr)
	return uids
}

func (p *Provisioner) pushAlertmanager(ctx context.Context, res *PassResult, doc *grafana.AlertmanagerDocument, fetchErr error, changed bool) {
	if fetchErr != nil {
		p.finishCategory(res, CategoryAlertmanager, "", 0, fetchErr)
		return
	}
	if !changed {
		p.finishCategory(res, CategoryAlertmanager, "", 0, nil)
		return
	}

	err := p.client.PushAlertmanager(ctx, doc)
	var refErr *grafana.ReferenceError
	if errors.As(err, &refErr) {
		slog.Error("provision: alertmanager push rejected — a route references an unknown contact point",
			"receiver", refErr.Key, "err", err)
	}
	pushes := 0
	if err == nil {
		pushes = 1
	}
	p.finishCategory(res, CategoryAlertmanager, "", pushes, err)
}

func (p *Provisioner) pushDashboards(ctx context.Context, res *PassResult, desired *DesiredState,
	folderUIDs map[string]string, hits []grafana.DashboardHit, searchErr error, mode Mode) {

	if searchErr != nil && mode == ModeMerge {
		p.finishCategory(res, CategoryDashboards, "", 0, searchErr)
		return
	}

	existing := make(map[string]string) // folderUID + "/" + title → dashboard UID
	for _, h := range hits {
		existing[h.FolderUID+"/"+h.Title] = h.UID
	}

	pushes := 0
	var firstErr error
	for folder, dashboards := range desired.Dashboards {
		folderUID, ok := folderUIDs[folder]
		if !ok {
			if firstErr == nil {
				firstErr = fmt.Errorf("dashboard folder %q has no resolved uid", folder)
			}
			continue
		}
		for _, d := range dashboards {
			// Merge mode keeps the remote identity when a dashboard with
			// this title already lives in the folder.
			if mode == ModeMerge {
				d.UID = existing[folderUID+"/"+d.Title]
			}
			push := grafana.DashboardPush{
				Dashboard: d,
				Overwrite: true,
				FolderUID: folderUID,
				Message:   "Updated from the hkd catalog",
			}
			if err := p.client.PushDashboard(ctx, push); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				slog.Error("provision: dashboard push failed",
					"folder", folder, "dashboard", d.Title, "err", err)
				continue
			}
			pushes++
		}
	}
	p.finishCategory(res, CategoryDashboards, "", pushes, firstErr)
}

func (p *Provisioner) pushRuleGroups(ctx context.Context, res *PassResult, desired *DesiredState,
	groupsByFolder map[string][]grafana.RuleGroup, fetchErr error, mode Mode) {

	if fetchErr != nil {
		p.finishCategory(res, CategoryRuleGroups, "", 0, fetchErr)
		return
	}

	// One worker per folder: folders are independent remote documents, but
	// writes within one folder share a document identity and take the
	// folder's mutex.
	var wg sync.WaitGroup
	for _, folder := range targetFolders(desired, mode) {
		folder := folder
		wg.Add(1)
		go func() {
			defer wg.Done()
			pushes, err := p.pushFolderGroups(ctx, folder, groupsByFolder[folder], mode)
			p.finishCategory(res, CategoryRuleGroups, folder, pushes, err)
		}()
	}
	wg.Wait()
}

// pushFolderGroups converges one folder's rule configuration.
func (p *Provisioner) pushFolderGroups(ctx context.Context, folder string, groups []grafana.RuleGroup, mode Mode) (int, error) {
	mu := p.lockFolder(folder)
	mu.Lock()
	defer mu.Unlock()

	pushes := 0
	if mode == ModeReplace {
		// Wipe first. An empty desired set means the folder's rule
		// configuration stays deleted.
		if err := p.client.DeleteRuleGroups(ctx, folder); err != nil {
			return 0, err
		}
		pushes++
		if len(groups) == 0 {
			return pushes, nil
		}
		if err := p.client.CreateFolder(ctx, grafana.Folder{Title: folder}); err != nil {
			return pushes, err
		}
	}

	for _, g := range groups {
		if err := p.client.PushRuleGroup(ctx, folder, g); err != nil {
			return pushes, err
		}
		pushes++
	}
	return pushes, nil
}

func (p *Provisioner) finishCategory(res *PassResult, category, key string, pushes int, err error) {
	c := CategoryResult{Category: category, Key: key, Pushes: pushes}
	if err != nil {
		c.Error = err.Error()
	}
	res.record(c)
	p.notifier.Notify(Event{
		Pass:     res.ID,
		State:    StatePushing,
		Category: category,
		Detail:   key,
		Error:    c.Error,
		Time:     time.Now().UTC(),
	})
}

// targetFolders returns the folders a pass converges rule groups for, in a
// stable order. Merge mode only touches folders with desired groups. Replace
// mode covers every desired folder: a folder with nothing desired in it
// still gets its stale rule configuration wiped.
func targetFolders(desired *DesiredState, mode Mode) []string {
	var out []string
	if mode == ModeReplace {
		for _, f := range desired.Folders {
			out = append(out, f.Title)
		}
	} else {
		for folder := range desired.RuleGroups {
			out = append(out, folder)
		}
	}
	sort.Strings(out)
	return out
}
