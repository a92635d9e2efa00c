package parse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

type fakeUser struct {
	id, password, role, fullName string
}

// fakeParse is a small in-memory Parse server: users, sessions, one class
// with ACLs, and a LiveQuery endpoint at /ws.
type fakeParse struct {
	mu       sync.Mutex
	users    map[string]fakeUser
	sessions map[string]fakeUser
	objects  []object // newest first
	seq      int
	live     map[*websocket.Conn]bool
	srv      *httptest.Server
	// lastPut holds the keys of the most recent update body.
	lastPut []string
}

func newFake(t *testing.T) *fakeParse {
	t.Helper()
	f := &fakeParse{
		users: map[string]fakeUser{
			"secretaire": {id: "u-sec", password: "Secret@123", role: "Secretary", fullName: "Secrétaire DG"},
			"directeur":  {id: "u-dir", password: "Direct@123", role: "Director"},
		},
		sessions: map[string]fakeUser{},
		live:     map[*websocket.Conn]bool{},
	}
	r := mux.NewRouter()
	r.Use(f.requireApp)
	r.HandleFunc("/login", f.login).Methods(http.MethodPost)
	r.HandleFunc("/logout", f.logout).Methods(http.MethodPost)
	r.HandleFunc("/classes/Appointment", f.list).Methods(http.MethodGet)
	r.HandleFunc("/classes/Appointment", f.create).Methods(http.MethodPost)
	r.HandleFunc("/classes/Appointment/{id}", f.get).Methods(http.MethodGet)
	r.HandleFunc("/classes/Appointment/{id}", f.update).Methods(http.MethodPut)
	r.HandleFunc("/classes/Appointment/{id}", f.remove).Methods(http.MethodDelete)
	r.HandleFunc("/ws", f.ws)
	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeParse) config() Config {
	return Config{
		ServerURL:    f.srv.URL,
		LiveQueryURL: "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws",
		AppID:        "app",
		RESTKey:      "rest",
		Timeout:      5 * time.Second,
	}
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, status, code int, msg string) {
	reply(w, status, apiError{Code: code, Message: msg})
}

func (f *fakeParse) requireApp(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" && r.Header.Get("X-Parse-Application-Id") != "app" {
			reply(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// caller must hold f.mu
func (f *fakeParse) session(r *http.Request) (fakeUser, bool) {
	u, ok := f.sessions[r.Header.Get("X-Parse-Session-Token")]
	return u, ok
}

func (f *fakeParse) login(w http.ResponseWriter, r *http.Request) {
	var body struct{ Username, Password string }
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[body.Username]
	if !ok || u.password != body.Password {
		fail(w, http.StatusNotFound, codeObjectNotFound, "Invalid username/password.")
		return
	}
	f.seq++
	tok := "r:" + strconv.Itoa(f.seq)
	f.sessions[tok] = u
	reply(w, http.StatusOK, user{ObjectID: u.id, Username: body.Username, Role: u.role, FullName: u.fullName, SessionToken: tok})
}

func (f *fakeParse) logout(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.session(r); !ok {
		fail(w, http.StatusBadRequest, codeInvalidSessionToken, "Invalid session token")
		return
	}
	delete(f.sessions, r.Header.Get("X-Parse-Session-Token"))
	reply(w, http.StatusOK, map[string]any{})
}

// authed runs fn with f.mu held once the session token checks out.
func (f *fakeParse) authed(w http.ResponseWriter, r *http.Request, fn func(u fakeUser)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.session(r)
	if !ok {
		fail(w, http.StatusBadRequest, codeInvalidSessionToken, "Invalid session token")
		return
	}
	fn(u)
}

func (f *fakeParse) index(id string) int {
	return slices.IndexFunc(f.objects, func(o object) bool { return o.ObjectID == id })
}

func canWrite(o object, u fakeUser) bool {
	return o.ACL[u.id].Write || o.ACL["role:"+u.role].Write
}

func (f *fakeParse) list(w http.ResponseWriter, r *http.Request) {
	f.authed(w, r, func(fakeUser) {
		if r.URL.Query().Get("order") != "-createdAt" {
			fail(w, http.StatusBadRequest, 102, "unexpected order")
			return
		}
		out := slices.Clone(f.objects)
		if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n < len(out) {
			out = out[:n]
		}
		reply(w, http.StatusOK, map[string]any{"results": out})
	})
}

func stamp(seq int) string {
	return time.Date(2025, 11, 1, 9, 0, seq, 0, time.UTC).Format("2006-01-02T15:04:05.000Z")
}

func (f *fakeParse) create(w http.ResponseWriter, r *http.Request) {
	f.authed(w, r, func(fakeUser) {
		var o object
		if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
			fail(w, http.StatusBadRequest, 107, err.Error())
			return
		}
		f.seq++
		o.ObjectID = fmt.Sprintf("obj%03d", f.seq)
		o.CreatedAt = stamp(f.seq)
		o.UpdatedAt = o.CreatedAt
		f.objects = append([]object{o}, f.objects...)
		f.broadcast("create", o.ObjectID)
		reply(w, http.StatusCreated, map[string]string{"objectId": o.ObjectID, "createdAt": o.CreatedAt})
	})
}

func (f *fakeParse) get(w http.ResponseWriter, r *http.Request) {
	f.authed(w, r, func(fakeUser) {
		i := f.index(mux.Vars(r)["id"])
		if i < 0 {
			fail(w, http.StatusNotFound, codeObjectNotFound, "Object not found.")
			return
		}
		reply(w, http.StatusOK, f.objects[i])
	})
}

func (f *fakeParse) update(w http.ResponseWriter, r *http.Request) {
	f.authed(w, r, func(u fakeUser) {
		i := f.index(mux.Vars(r)["id"])
		if i < 0 {
			fail(w, http.StatusNotFound, codeObjectNotFound, "Object not found.")
			return
		}
		if !canWrite(f.objects[i], u) {
			fail(w, http.StatusForbidden, codeOperationForbidden, "Permission denied")
			return
		}
		// like Parse, only the keys present in the body change
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			fail(w, http.StatusBadRequest, 107, "invalid JSON")
			return
		}
		f.lastPut = f.lastPut[:0]
		for k := range raw {
			f.lastPut = append(f.lastPut, k)
		}
		slices.Sort(f.lastPut)
		cur := f.objects[i]
		in := cur
		body, _ := json.Marshal(raw)
		_ = json.Unmarshal(body, &in)
		in.ObjectID, in.CreatedAt, in.CreatedBy, in.ACL = cur.ObjectID, cur.CreatedAt, cur.CreatedBy, cur.ACL
		f.seq++
		in.UpdatedAt = stamp(f.seq)
		f.objects[i] = in
		f.broadcast("update", in.ObjectID)
		reply(w, http.StatusOK, map[string]string{"updatedAt": in.UpdatedAt})
	})
}

func (f *fakeParse) remove(w http.ResponseWriter, r *http.Request) {
	f.authed(w, r, func(u fakeUser) {
		i := f.index(mux.Vars(r)["id"])
		if i < 0 {
			fail(w, http.StatusNotFound, codeObjectNotFound, "Object not found.")
			return
		}
		if !canWrite(f.objects[i], u) {
			fail(w, http.StatusForbidden, codeOperationForbidden, "Permission denied")
			return
		}
		id := f.objects[i].ObjectID
		f.objects = slices.Delete(f.objects, i, i+1)
		f.broadcast("delete", id)
		reply(w, http.StatusOK, map[string]any{})
	})
}

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func (f *fakeParse) ws(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var m liveMessage
	if err := conn.ReadJSON(&m); err != nil || m.Op != "connect" || m.ApplicationID != "app" {
		return
	}
	f.mu.Lock()
	_, ok := f.sessions[m.SessionToken]
	f.mu.Unlock()
	if !ok {
		_ = conn.WriteJSON(liveMessage{Op: "error", Code: codeInvalidSessionToken, Error: "Invalid session token"})
		return
	}
	_ = conn.WriteJSON(map[string]any{"op": "connected", "clientId": 1})
	if err := conn.ReadJSON(&m); err != nil || m.Op != "subscribe" || m.Query == nil || m.Query.ClassName != className {
		return
	}

	f.mu.Lock()
	_ = conn.WriteJSON(map[string]any{"op": "subscribed", "clientId": 1, "requestId": m.RequestID})
	f.live[conn] = true
	f.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	f.mu.Lock()
	delete(f.live, conn)
	f.mu.Unlock()
}

// caller must hold f.mu
func (f *fakeParse) broadcast(op, id string) {
	for c := range f.live {
		_ = c.WriteJSON(liveMessage{Op: op, RequestID: requestID, Object: &object{ObjectID: id}})
	}
}

// dropLive closes every LiveQuery connection from the server side.
func (f *fakeParse) dropLive() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.live {
		_ = c.Close()
		delete(f.live, c)
	}
}

func (f *fakeParse) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

func (f *fakeParse) updatedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.lastPut)
}

func (f *fakeParse) stored(id string) (object, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.index(id); i >= 0 {
		return f.objects[i], true
	}
	return object{}, false
}
