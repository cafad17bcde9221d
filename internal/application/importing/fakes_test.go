package importing_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mohammadpnp/energy-crm/internal/domain/crm"
	domain "github.com/mohammadpnp/energy-crm/internal/domain/importing"
)

// memCRM is an in-memory crm.Store. WithinTx snapshots the state and restores
// it when fn fails.
type memCRM struct {
	mu        sync.Mutex
	seq       int
	customers map[string]crm.Customer
	contacts  map[string]crm.Contact
	energies  map[string]crm.Energy
	providers map[string]crm.Provider
	comments  []crm.Comment
	users     []crm.User

	// beforeCustomerSave runs once inside SaveCustomer; it simulates another
	// writer committing between match and insert.
	beforeCustomerSave func(m *memCRM)
	outside            []func(m *memCRM)
	failCustomer       func(c crm.Customer) error
	failContact        func(c crm.Contact) error
	customerSaves      int
}

func newMemCRM() *memCRM {
	return &memCRM{
		customers: map[string]crm.Customer{},
		contacts:  map[string]crm.Contact{},
		energies:  map[string]crm.Energy{},
		providers: map[string]crm.Provider{},
	}
}

func (m *memCRM) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memCRM) WithinTx(ctx context.Context, fn func(tx crm.Writer) error) error {
	m.mu.Lock()
	snapshot := m.cloneState()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.restore(snapshot)
		for _, apply := range m.outside {
			apply(m)
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

type memState struct {
	customers map[string]crm.Customer
	contacts  map[string]crm.Contact
	energies  map[string]crm.Energy
	providers map[string]crm.Provider
	comments  []crm.Comment
}

func (m *memCRM) cloneState() memState {
	s := memState{
		customers: map[string]crm.Customer{},
		contacts:  map[string]crm.Contact{},
		energies:  map[string]crm.Energy{},
		providers: map[string]crm.Provider{},
		comments:  append([]crm.Comment(nil), m.comments...),
	}
	for k, v := range m.customers {
		s.customers[k] = v
	}
	for k, v := range m.contacts {
		s.contacts[k] = v
	}
	for k, v := range m.energies {
		s.energies[k] = v
	}
	for k, v := range m.providers {
		s.providers[k] = v
	}
	return s
}

func (m *memCRM) restore(s memState) {
	m.customers = s.customers
	m.contacts = s.contacts
	m.energies = s.energies
	m.providers = s.providers
	m.comments = s.comments
}

// commitOutside applies a change made by another writer. It survives the
// rollback of the transaction that is running.
func (m *memCRM) commitOutside(apply func(m *memCRM)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	apply(m)
	m.outside = append(m.outside, apply)
}

func (m *memCRM) addCustomer(c crm.Customer) crm.Customer {
	if c.ID == "" {
		c.ID = m.nextID("cust")
	}
	m.customers[c.ID] = c
	return c
}

func (m *memCRM) addContact(c crm.Contact) crm.Contact {
	if c.ID == "" {
		c.ID = m.nextID("contact")
	}
	m.contacts[c.ID] = c
	return c
}

func (m *memCRM) addEnergy(e crm.Energy) crm.Energy {
	if e.ID == "" {
		e.ID = m.nextID("energy")
	}
	m.energies[e.ID] = e
	return e
}

func (m *memCRM) addProvider(name string) crm.Provider {
	p := crm.Provider{ID: m.nextID("provider"), Name: name}
	m.providers[p.ID] = p
	return p
}

func (m *memCRM) sortedCustomers() []crm.Customer {
	out := make([]crm.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memCRM) customerByName(name string) *crm.Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.sortedCustomers() {
		if c.Name == name {
			c := c
			return &c
		}
	}
	return nil
}

func (m *memCRM) contactsOf(customerID string) []crm.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []crm.Contact
	for _, c := range m.contacts {
		if c.CustomerID == customerID {
			out = append(out, c)
		}
	}
	return out
}

func (m *memCRM) energiesOf(customerID string) []crm.Energy {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []crm.Energy
	for _, e := range m.energies {
		if e.CustomerID == customerID {
			out = append(out, m.withProvider(e))
		}
	}
	return out
}

func (m *memCRM) commentsOf(customerID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.comments {
		if c.CustomerID == customerID {
			out = append(out, c.Content)
		}
	}
	return out
}

func (m *memCRM) withProvider(e crm.Energy) crm.Energy {
	if e.ProviderID != nil {
		if p, ok := m.providers[*e.ProviderID]; ok {
			e.Provider = &p
		}
	}
	return e
}

func (m *memCRM) FindCustomerBySiret(ctx context.Context, siret string) (*crm.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.sortedCustomers() {
		if c.Siret == siret {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memCRM) FindCustomerByName(ctx context.Context, name string) (*crm.Customer, error) {
	return m.customerByName(name), nil
}

func (m *memCRM) FindContact(ctx context.Context, q crm.ContactQuery) (*crm.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.contacts))
	for id := range m.contacts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		c := m.contacts[id]
		if q.Matches(c) {
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memCRM) FindEnergyByCode(ctx context.Context, code string, energyType crm.EnergyType) (*crm.Energy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.energies {
		if e.Code == code && e.Type == energyType {
			e = m.withProvider(e)
			return &e, nil
		}
	}
	return nil, nil
}

func (m *memCRM) ListCustomerEnergies(ctx context.Context, customerID string, energyType crm.EnergyType) ([]crm.Energy, error) {
	var out []crm.Energy
	for _, e := range m.energiesOf(customerID) {
		if e.Type == energyType {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memCRM) FindUserByEmail(ctx context.Context, email string) (*crm.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (m *memCRM) SaveCustomer(ctx context.Context, c *crm.Customer) error {
	m.mu.Lock()
	hook := m.beforeCustomerSave
	m.beforeCustomerSave = nil
	m.mu.Unlock()
	if hook != nil {
		hook(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.customerSaves++
	if m.failCustomer != nil {
		if err := m.failCustomer(*c); err != nil {
			return err
		}
	}
	for _, other := range m.customers {
		if other.ID == c.ID {
			continue
		}
		if c.Siret != "" && other.Siret == c.Siret {
			return fmt.Errorf("%w: customers_siret_key", crm.ErrDuplicateKey)
		}
		if c.Siret == "" && other.Siret == "" && other.Name == c.Name {
			return fmt.Errorf("%w: customers_name_key", crm.ErrDuplicateKey)
		}
	}
	*c = m.addCustomer(*c)
	return nil
}

func (m *memCRM) SaveContact(ctx context.Context, c *crm.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failContact != nil {
		if err := m.failContact(*c); err != nil {
			return err
		}
	}
	*c = m.addContact(*c)
	return nil
}

func (m *memCRM) SaveEnergy(ctx context.Context, e *crm.Energy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.energies {
		if other.ID != e.ID && e.Code != "" && other.Code == e.Code && other.Type == e.Type {
			return fmt.Errorf("%w: energies_code_key", crm.ErrDuplicateKey)
		}
	}
	stored := *e
	stored.Provider = nil
	stored = m.addEnergy(stored)
	e.ID = stored.ID
	return nil
}

func (m *memCRM) EnsureProvider(ctx context.Context, name string) (*crm.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.providers {
		if strings.EqualFold(p.Name, name) {
			p := p
			return &p, nil
		}
	}
	p := m.addProvider(name)
	return &p, nil
}

func (m *memCRM) HasComment(ctx context.Context, customerID, content string) (bool, error) {
	for _, c := range m.commentsOf(customerID) {
		if c == content {
			return true, nil
		}
	}
	return false, nil
}

func (m *memCRM) AddComment(ctx context.Context, c *crm.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.nextID("comment")
	m.comments = append(m.comments, *c)
	return nil
}

// memStore implements the import repository and the task queue.
type memStore struct {
	mu      sync.Mutex
	seq     int
	imports map[string]domain.Import
	tasks   []*memTask
	results map[string][]domain.AnalysisResult
	errs    []domain.ImportError

	statusOverride func(id string, calls int) domain.Status
	statusCalls    int
	failAddErrors  error
	// failRecord fails RecordRow before anything is stored when it returns
	// an error.
	failRecord func(o domain.RowOutcome) error
}

type memTask struct {
	task    domain.Task
	status  string
	reason  string
	expired bool
}

func newMemStore() *memStore {
	return &memStore{
		imports: map[string]domain.Import{},
		results: map[string][]domain.AnalysisResult{},
	}
}

func (s *memStore) put(imp domain.Import) *domain.Import {
	s.mu.Lock()
	defer s.mu.Unlock()
	if imp.ID == "" {
		s.seq++
		imp.ID = fmt.Sprintf("imp-%d", s.seq)
	}
	s.imports[imp.ID] = imp
	return &imp
}

func (s *memStore) Create(ctx context.Context, imp *domain.Import) error {
	*imp = *s.put(*imp)
	return nil
}

func (s *memStore) Get(ctx context.Context, id string) (*domain.Import, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	imp, ok := s.imports[id]
	if !ok {
		return nil, domain.ErrImportNotFound
	}
	return &imp, nil
}

func (s *memStore) Transition(ctx context.Context, imp *domain.Import, from domain.Status, tasks []domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.imports[imp.ID]
	if !ok {
		return domain.ErrImportNotFound
	}
	if stored.Status != from {
		return fmt.Errorf("%w: import %s is %s", domain.ErrConcurrentTransition, imp.ID, stored.Status)
	}
	stored.Status = imp.Status
	stored.TotalRows = imp.TotalRows
	stored.ErrorMessage = imp.ErrorMessage
	stored.StartedAt = imp.StartedAt
	stored.CompletedAt = imp.CompletedAt
	s.imports[imp.ID] = stored

	if imp.Status.IsTerminal() {
		for _, t := range s.tasks {
			if t.task.ImportID == imp.ID && t.status == "queued" {
				t.status = "discarded"
			}
		}
	}
	for _, t := range tasks {
		s.seq++
		t.ID = fmt.Sprintf("task-%d", s.seq)
		t.ImportID = imp.ID
		if t.MaxAttempts == 0 {
			t.MaxAttempts = 3
		}
		s.tasks = append(s.tasks, &memTask{task: t, status: "queued"})
	}
	return nil
}

func (s *memStore) CompleteIfDrained(ctx context.Context, id string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	imp := s.imports[id]
	if imp.Status != domain.StatusProcessing {
		return false, nil
	}
	for _, t := range s.tasks {
		if t.task.ImportID == id && t.task.Kind == domain.TaskProcessBatch && (t.status == "queued" || t.status == "running" || t.status == "failed") {
			return false, nil
		}
	}
	imp.Status = domain.StatusCompleted
	imp.CompletedAt = &now
	s.imports[id] = imp
	return true, nil
}

func (s *memStore) Status(ctx context.Context, id string) (domain.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCalls++
	if s.statusOverride != nil {
		if st := s.statusOverride(id, s.statusCalls); st != "" {
			return st, nil
		}
	}
	imp, ok := s.imports[id]
	if !ok {
		return "", domain.ErrImportNotFound
	}
	return imp.Status, nil
}

func (s *memStore) Stalled(ctx context.Context) ([]domain.StalledImport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byImport := map[string]*domain.StalledImport{}
	open := map[string]bool{}
	var order []string
	for _, t := range s.tasks {
		id := t.task.ImportID
		imp := s.imports[id]
		if imp.Status != domain.StatusAnalyzing && imp.Status != domain.StatusProcessing {
			continue
		}
		st, ok := byImport[id]
		if !ok {
			st = &domain.StalledImport{ID: id, Status: imp.Status}
			byImport[id] = st
			order = append(order, id)
		}
		switch t.status {
		case "queued", "running":
			open[id] = true
		case "failed":
			st.FailedTasks++
			st.LastError = t.reason
		}
	}
	var out []domain.StalledImport
	for _, id := range order {
		if !open[id] {
			out = append(out, *byImport[id])
		}
	}
	return out, nil
}

func (s *memStore) RecordRow(ctx context.Context, o domain.RowOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRecord != nil {
		if err := s.failRecord(o); err != nil {
			return err
		}
	}
	if o.Error != nil && s.failAddErrors != nil {
		return s.failAddErrors
	}
	if o.TaskID != "" {
		t := s.taskByID(o.TaskID)
		if t == nil {
			return errors.New("unknown task " + o.TaskID)
		}
		if t.task.NextRow > o.Row {
			return nil
		}
		t.task.NextRow = o.Row + 1
	}
	if o.Error != nil {
		s.errs = append(s.errs, *o.Error)
	}
	imp := s.imports[o.ImportID]
	imp.ProcessedRows++
	if o.Success {
		imp.SuccessRows++
	} else {
		imp.ErrorRows++
	}
	s.imports[o.ImportID] = imp
	return nil
}

func (s *memStore) UpdateRowCounts(ctx context.Context, id string, total, lastRow int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	imp := s.imports[id]
	imp.TotalRows = total
	imp.LastRow = lastRow
	s.imports[id] = imp
	return nil
}

func (s *memStore) ResetAnalysis(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, id)
	kept := s.errs[:0:0]
	for _, e := range s.errs {
		if e.ImportID == id && e.Phase == domain.PhaseAnalysis {
			continue
		}
		kept = append(kept, e)
	}
	s.errs = kept
	return nil
}

func (s *memStore) SaveResults(ctx context.Context, id string, results []domain.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[id] = append(s.results[id], results...)
	return nil
}

func (s *memStore) AddErrors(ctx context.Context, errs []domain.ImportError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAddErrors != nil {
		return s.failAddErrors
	}
	s.errs = append(s.errs, errs...)
	return nil
}

func (s *memStore) Results(ctx context.Context, id string) ([]domain.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AnalysisResult(nil), s.results[id]...), nil
}

func (s *memStore) Errors(ctx context.Context, id string, limit, offset int) ([]domain.ImportError, error) {
	all := s.errorsOf(id, "")
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *memStore) CountErrorRows(ctx context.Context, id string, phase domain.Phase) (int, error) {
	rows := map[int]bool{}
	for _, e := range s.errorsOf(id, phase) {
		if e.Severity == domain.SeverityError {
			rows[e.Row] = true
		}
	}
	return len(rows), nil
}

func (s *memStore) errorsOf(id string, phase domain.Phase) []domain.ImportError {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ImportError
	for _, e := range s.errs {
		if e.ImportID == id && (phase == "" || e.Phase == phase) {
			out = append(out, e)
		}
	}
	return out
}

func (s *memStore) ClaimNext(ctx context.Context, leaseDuration time.Duration) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.status == "queued" && t.task.Attempts < t.task.MaxAttempts {
			t.status = "running"
			t.expired = false
			t.task.Attempts++
			task := t.task
			return &task, nil
		}
	}
	return nil, nil
}

// runningTask registers a claimed batch task for imp, as ClaimNext would
// return it.
func (s *memStore) runningTask(imp *domain.Import, window domain.RowWindow) domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	task := domain.BatchTask(imp.ID, window)
	task.ID = fmt.Sprintf("task-%d", s.seq)
	task.Attempts = 1
	task.MaxAttempts = 3
	s.tasks = append(s.tasks, &memTask{task: task, status: "running"})
	return task
}

// expireLease makes a running task look abandoned by its worker.
func (s *memStore) expireLease(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.taskByID(taskID); t != nil {
		t.expired = true
	}
}

func (s *memStore) taskByID(id string) *memTask {
	for _, t := range s.tasks {
		if t.task.ID == id {
			return t
		}
	}
	return nil
}

func (s *memStore) Heartbeat(ctx context.Context, taskID string, leaseDuration time.Duration) error {
	return nil
}

func (s *memStore) Complete(ctx context.Context, taskID string) error {
	return s.setTask(taskID, "succeeded", "")
}

func (s *memStore) Requeue(ctx context.Context, taskID string, reason string) error {
	return s.setTask(taskID, "queued", reason)
}

func (s *memStore) Fail(ctx context.Context, taskID string, reason string) error {
	return s.setTask(taskID, "failed", reason)
}

func (s *memStore) Release(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.taskByID(taskID)
	if t == nil {
		return errors.New("unknown task " + taskID)
	}
	if t.status == "running" {
		t.status = "queued"
		if t.task.Attempts > 0 {
			t.task.Attempts--
		}
	}
	return nil
}

func (s *memStore) ReapExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reaped := 0
	for _, t := range s.tasks {
		if t.status == "running" && t.expired && t.task.Attempts >= t.task.MaxAttempts {
			t.status = "failed"
			t.reason = "lease expired on the last attempt"
			reaped++
		}
	}
	return reaped, nil
}

func (s *memStore) setTask(taskID, status, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.taskByID(taskID)
	if t == nil {
		return errors.New("unknown task " + taskID)
	}
	if t.status != "discarded" {
		t.status = status
	}
	t.reason = reason
	return nil
}

func (s *memStore) taskStatuses(importID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, t := range s.tasks {
		if t.task.ImportID == importID {
			out = append(out, t.status)
		}
	}
	return out
}

// memSheets serves workbooks keyed by path. The first row is the header;
// blank rows are skipped the way the excel reader skips them.
type memSheets struct {
	sheets  map[string][][]any
	readErr error
}

func newMemSheets() *memSheets {
	return &memSheets{sheets: map[string][][]any{}}
}

func (m *memSheets) sheet(path string) ([][]any, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	rows, ok := m.sheets[path]
	if !ok || len(rows) == 0 {
		return nil, fmt.Errorf("open %s: no such workbook", path)
	}
	return rows, nil
}

func (m *memSheets) Headers(ctx context.Context, path string) ([]string, error) {
	rows, err := m.sheet(path)
	if err != nil {
		return nil, err
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = fmt.Sprint(h)
	}
	return headers, nil
}

func (m *memSheets) CountRows(ctx context.Context, path string) (domain.RowCount, error) {
	rows, err := m.sheet(path)
	if err != nil {
		return domain.RowCount{}, err
	}
	var count domain.RowCount
	for i := 1; i < len(rows); i++ {
		if !blankValues(rows[i]) {
			count.Data++
			count.LastRow = i + 1
		}
	}
	return count, nil
}

func (m *memSheets) ReadRowsInBatches(ctx context.Context, path string, batchSize int, fn func(batch []domain.SheetRow) error) error {
	var batch []domain.SheetRow
	err := m.each(path, 2, 1<<30, func(row domain.SheetRow) error {
		batch = append(batch, row)
		if len(batch) == batchSize {
			if err := fn(batch); err != nil {
				return err
			}
			batch = nil
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

func (m *memSheets) ReadRange(ctx context.Context, path string, startRow, endRow int, fn func(row domain.SheetRow) error) error {
	return m.each(path, startRow, endRow, fn)
}

func (m *memSheets) each(path string, startRow, endRow int, fn func(row domain.SheetRow) error) error {
	rows, err := m.sheet(path)
	if err != nil {
		return err
	}
	headers := rows[0]
	for i := 1; i < len(rows); i++ {
		number := i + 1
		if number < startRow || number > endRow || blankValues(rows[i]) {
			continue
		}
		cells := make([]domain.Cell, len(headers))
		for c, h := range headers {
			cells[c] = domain.Cell{Header: fmt.Sprint(h)}
			if c < len(rows[i]) {
				cells[c].Value = rows[i][c]
			}
		}
		if err := fn(domain.SheetRow{Number: number, Cells: cells}); err != nil {
			return err
		}
	}
	return nil
}

func blankValues(values []any) bool {
	for _, v := range values {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return false
	}
	return true
}

// memFiles stores uploads under their original name.
type memFiles struct {
	mu      sync.Mutex
	stored  map[string][]byte
	deleted []string
}

func newMemFiles() *memFiles {
	return &memFiles{stored: map[string][]byte{}}
}

func (f *memFiles) Store(ctx context.Context, originalName string, content io.Reader) (domain.FileInfo, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, content)
	if err != nil {
		return domain.FileInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored[originalName] = buf.Bytes()
	return domain.FileInfo{
		OriginalName: originalName,
		StoredName:   originalName,
		StoredPath:   originalName,
		Size:         n,
		MimeType:     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}, nil
}

func (f *memFiles) Path(storedName string) string {
	return storedName
}

func (f *memFiles) Delete(ctx context.Context, storedName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stored, storedName)
	f.deleted = append(f.deleted, storedName)
	return nil
}

type memNotifier struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (n *memNotifier) record(event string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *memNotifier) AnalysisCompleted(ctx context.Context, imp *domain.Import, impact domain.AnalysisImpact) error {
	return n.record("analysis")
}

func (n *memNotifier) ProcessingCompleted(ctx context.Context, imp *domain.Import) error {
	return n.record("completed")
}

func (n *memNotifier) ImportFailed(ctx context.Context, imp *domain.Import) error {
	return n.record("failed")
}

func (n *memNotifier) ImportCancelled(ctx context.Context, imp *domain.Import) error {
	return n.record("cancelled")
}

func (n *memNotifier) recorded() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}
