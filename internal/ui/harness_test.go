package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/daviddao/simdash/internal/api"
)

// --- Fake simulation service ---

type request struct {
	Method string
	Path   string
	Query  string
	Body   string
}

func (r request) String() string {
	s := r.Method + " " + r.Path
	if r.Query != "" {
		s += "?" + r.Query
	}
	if r.Body != "" {
		s += " " + r.Body
	}
	return s
}

// fakeService is an in-memory simulation service. PATCH with a machine_id
// starts the simulation; PATCH with a status sets it.
type fakeService struct {
	mu       sync.Mutex
	machines []api.Machine
	sims     []*api.Simulation
	samples  map[int64][]api.Sample
	requests []request
	nextID   int64

	// failures maps "METHOD /path" to a status code and {"message"} body.
	failures map[string]failure
}

type failure struct {
	code    int
	message string
}

func newFakeService() *fakeService {
	return &fakeService{
		samples:  map[int64][]api.Sample{},
		failures: map[string]failure{},
		nextID:   100,
	}
}

func (f *fakeService) addMachine(id int64, name string, available bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.machines = append(f.machines, api.Machine{ID: id, Name: name, Availability: available})
}

func (f *fakeService) addSimulation(id int64, name string, status api.Status, samples ...api.Sample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sims = append(f.sims, &api.Simulation{
		ID:           id,
		Name:         name,
		CreationDate: "2024-01-01T00:00:00Z",
		UpdateDate:   "2024-01-01T00:00:00Z",
		Status:       status,
	})
	f.samples[id] = samples
}

func (f *fakeService) fail(method, path string, code int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method+" "+path] = failure{code, message}
}

func (f *fakeService) recorded() []request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]request(nil), f.requests...)
}

// count returns how many recorded requests match method and path.
func (f *fakeService) count(method, path string) int {
	n := 0
	for _, r := range f.recorded() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (f *fakeService) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = nil
}

func (f *fakeService) find(id int64) *api.Simulation {
	for _, s := range f.sims {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, request{r.Method, r.URL.Path, r.URL.RawQuery, string(body)})

	if fl, ok := f.failures[r.Method+" "+r.URL.Path]; ok {
		w.WriteHeader(fl.code)
		fmt.Fprintf(w, `{"message":%q}`, fl.message)
		return
	}

	segs := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case segs[0] == "machines" && r.Method == http.MethodGet:
		writeJSON(w, f.machines)

	case segs[0] == "machines" && r.Method == http.MethodPost:
		var in struct{ Name string }
		json.Unmarshal(body, &in)
		f.nextID++
		f.machines = append(f.machines, api.Machine{ID: f.nextID, Name: in.Name, Availability: true})
		w.WriteHeader(http.StatusCreated)

	case segs[0] == "simulations" && len(segs) == 1 && r.Method == http.MethodGet:
		status := r.URL.Query().Get("status")
		out := []api.SimulationSummary{}
		for _, s := range f.sims {
			if status != "" && string(s.Status) != status {
				continue
			}
			name := ""
			if s.MachineName != nil {
				name = *s.MachineName
			}
			out = append(out, api.SimulationSummary{ID: s.ID, Name: s.Name, MachineName: name, Status: s.Status})
		}
		writeJSON(w, out)

	case segs[0] == "simulations" && len(segs) == 1 && r.Method == http.MethodPost:
		var in api.NewSimulation
		json.Unmarshal(body, &in)
		f.nextID++
		f.sims = append(f.sims, &api.Simulation{ID: f.nextID, Name: in.Name, MachineID: in.MachineID, Status: in.Status})
		w.WriteHeader(http.StatusCreated)

	case segs[0] == "simulations" && len(segs) >= 2:
		id, _ := strconv.ParseInt(segs[1], 10, 64)
		sim := f.find(id)
		if sim == nil {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"simulation not found"}`)
			return
		}
		if len(segs) == 3 && segs[2] == "convergence" {
			writeJSON(w, append([]api.Sample{}, f.samples[id]...))
			return
		}
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, sim)
		case http.MethodPatch:
			var in struct {
				MachineID *int64      `json:"machine_id"`
				Status    *api.Status `json:"status"`
			}
			json.Unmarshal(body, &in)
			if in.MachineID != nil {
				sim.MachineID = in.MachineID
				for _, m := range f.machines {
					if m.ID == *in.MachineID {
						name := m.Name
						sim.MachineName = &name
					}
				}
				sim.Status = api.StatusRunning
			}
			if in.Status != nil {
				sim.Status = *in.Status
			}
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			for i, s := range f.sims {
				if s.ID == id {
					f.sims = append(f.sims[:i], f.sims[i+1:]...)
					break
				}
			}
			w.WriteHeader(http.StatusNoContent)
		}

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, f *fakeService) *api.Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return api.New(srv.URL)
}

// --- Fake push channel ---

type fakeChannel struct {
	mu        sync.Mutex
	started   int
	closed    int
	connected bool
	joins     []int64
	leaves    []int64
	onConnect []func()
	onUpdate  []func(api.Sample)
}

func (c *fakeChannel) Start() {
	c.mu.Lock()
	c.started++
	c.mu.Unlock()
}

func (c *fakeChannel) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = append(c.onConnect, fn)
}

func (c *fakeChannel) OnUpdate(fn func(api.Sample)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = append(c.onUpdate, fn)
}

func (c *fakeChannel) RemoveAllListeners() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = nil
	c.onUpdate = nil
}

func (c *fakeChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeChannel) Join(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joins = append(c.joins, id)
	return nil
}

func (c *fakeChannel) Leave(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaves = append(c.leaves, id)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	c.connected = false
	return nil
}

// connect marks the channel live and runs the connect listeners.
func (c *fakeChannel) connect() {
	c.mu.Lock()
	c.connected = true
	fns := append([]func(){}, c.onConnect...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// push delivers an update to the update listeners.
func (c *fakeChannel) push(s api.Sample) {
	c.mu.Lock()
	fns := append([]func(api.Sample){}, c.onUpdate...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

func (c *fakeChannel) listeners() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.onConnect), len(c.onUpdate)
}

// dialer counts how many channels were created.
type dialer struct {
	mu    sync.Mutex
	dials int
	ch    *fakeChannel
}

func (d *dialer) dial() PushChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.ch = &fakeChannel{}
	return d.ch
}

func (d *dialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// --- Command runner ---

// runner executes commands concurrently like the bubbletea runtime and
// feeds their messages back into an update function.
type runner struct {
	update func(tea.Msg) tea.Cmd
	msgs   chan tea.Msg
	alerts []string
	navs   []string
	// root also feeds alerts and navigations to update.
	root bool
}

func newRunner(update func(tea.Msg) tea.Cmd) *runner {
	return &runner{update: update, msgs: make(chan tea.Msg, 256)}
}

func (r *runner) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	go func() { r.msgs <- cmd() }()
}

// settle processes messages until none arrive for a short while.
func (r *runner) settle() {
	for {
		select {
		case msg := <-r.msgs:
			r.handle(msg)
		case <-time.After(150 * time.Millisecond):
			return
		}
	}
}

func (r *runner) handle(msg tea.Msg) {
	switch msg := msg.(type) {
	case nil, tickMsg:
	case tea.BatchMsg:
		for _, c := range msg {
			r.run(c)
		}
	case alertMsg:
		r.alerts = append(r.alerts, msg.text)
		if r.root {
			r.run(r.update(msg))
		}
	case navigateMsg:
		r.navs = append(r.navs, msg.path)
		if r.root {
			r.run(r.update(msg))
		}
	default:
		r.run(r.update(msg))
	}
}

// send processes msg and everything it triggers.
func (r *runner) send(msg tea.Msg) {
	r.handle(msg)
	r.settle()
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(r *runner, s string) {
	for _, c := range s {
		r.send(keyPress(string(c)))
	}
}

var nopLog = zerolog.Nop()
