package flame_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"packfetch/internal/fetch"
	"packfetch/internal/flame"
	"packfetch/internal/i18n"
	"packfetch/internal/logging"
	"packfetch/internal/services"
	"packfetch/internal/task"
)

// metaServer answers /<project>/<file>.json from a table of bodies keyed by
// "project/file". Missing keys get a {"code":404} body.
func metaServer(t *testing.T, bodies map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), ".json")
		body, ok := bodies[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":404,"message":"not found"}`))
			return
		}
		if body == "block" {
			<-r.Context().Done()
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func okBody(name string) string {
	return fmt.Sprintf(`{"FileNameOnDisk":%q,"DownloadURL":"https://cdn.example/%s"}`, name, name)
}

func manifestWith(ids ...[2]int64) *flame.Manifest {
	m := &flame.Manifest{ManifestType: "minecraftModpack", ManifestVersion: 1}
	for _, id := range ids {
		m.Files = append(m.Files, flame.File{ProjectID: id[0], FileID: id[1], Required: true})
	}
	return m
}

func runResolve(t *testing.T, srv *httptest.Server, m *flame.Manifest) ([]task.Event, error) {
	t.Helper()
	client := fetch.New(nil, fetch.WithHTTPClient(srv.Client()))
	rt := flame.NewResolveTask(m, client, flame.WithMetaBaseURL(srv.URL), flame.WithLogger(logging.NewNop()))
	var events []task.Event
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := task.Run(ctx, rt, func(ev task.Event) { events = append(events, ev) })
	return events, err
}

func TestMetadataURL(t *testing.T) {
	got := flame.MetadataURL("https://cursemeta.dries007.net/", 238222, 2459402)
	if got != "https://cursemeta.dries007.net/238222/2459402.json" {
		t.Fatalf("MetadataURL = %q", got)
	}
}

func TestResolveAllSucceed(t *testing.T) {
	srv := metaServer(t, map[string]string{
		"1/10": okBody("a.jar"),
		"2/20": okBody("b.jar"),
		"3/30": okBody("c.jar"),
	})
	m := manifestWith([2]int64{1, 10}, [2]int64{2, 20}, [2]int64{3, 30})

	events, err := runResolve(t, srv, m)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if events[0].Kind != task.EventStatus || events[0].Message != i18n.ResolvingMods {
		t.Fatalf("first event = %+v", events[0])
	}
	if events[1].Kind != task.EventProgress || events[1].Current != 0 || events[1].Total != 3 {
		t.Fatalf("second event = %+v", events[1])
	}
	for i, want := range []string{"a.jar", "b.jar", "c.jar"} {
		f := m.Files[i]
		if !f.Resolved || f.FileName != want || f.URL != "https://cdn.example/"+want {
			t.Fatalf("file %d not resolved in place: %+v", i, f)
		}
	}
}

func TestResolvePartialFailureKeepsOtherFiles(t *testing.T) {
	srv := metaServer(t, map[string]string{
		"1/10": okBody("a.jar"),
		"3/30": `{"FileNameOnDisk":`,
		"4/40": `{"FileNameOnDisk":"d.jar"}`,
		"5/50": okBody("e.jar"),
	})
	m := manifestWith([2]int64{1, 10}, [2]int64{2, 20}, [2]int64{3, 30}, [2]int64{4, 40}, [2]int64{5, 50})

	_, err := runResolve(t, srv, m)
	var failure *task.Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected task failure, got %v", err)
	}
	if failure.Message != "Some mod ID resolving tasks failed." {
		t.Fatalf("message = %q", failure.Message)
	}
	want := []bool{true, false, false, false, true}
	for i, resolved := range want {
		if m.Files[i].Resolved != resolved {
			t.Fatalf("file %d resolved = %v, want %v", i, m.Files[i].Resolved, resolved)
		}
	}
	if m.Files[4].FileName != "e.jar" {
		t.Fatalf("index alignment broken: file 4 = %+v", m.Files[4])
	}
	if got := m.Unresolved(); len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("Unresolved = %v", got)
	}
}

func TestResolveRejectsNullFields(t *testing.T) {
	srv := metaServer(t, map[string]string{
		"1/10": `{"FileNameOnDisk":null,"DownloadURL":null}`,
		"2/20": `{"FileNameOnDisk":"b.jar","DownloadURL":null}`,
		"3/30": okBody("c.jar"),
	})
	m := manifestWith([2]int64{1, 10}, [2]int64{2, 20}, [2]int64{3, 30})

	_, err := runResolve(t, srv, m)
	var failure *task.Failure
	if !errors.As(err, &failure) || failure.Message != i18n.ResolveSomeFailed {
		t.Fatalf("expected resolve failure, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if f := m.Files[i]; f.Resolved || f.FileName != "" || f.URL != "" {
			t.Fatalf("file %d must stay unresolved: %+v", i, f)
		}
	}
	if !m.Files[2].Resolved {
		t.Fatalf("file 2 should resolve: %+v", m.Files[2])
	}
}

func TestResolveNegativeResultWithSuccessStatus(t *testing.T) {
	srv := metaServer(t, map[string]string{"7/70": `{"code":500}`})
	m := manifestWith([2]int64{7, 70})
	if _, err := runResolve(t, srv, m); err == nil {
		t.Fatal("expected failure for a code document")
	}
	if m.Files[0].Resolved {
		t.Fatal("file must stay unresolved")
	}
}

func TestResolveEmptyManifestSucceeds(t *testing.T) {
	srv := metaServer(t, nil)
	if _, err := runResolve(t, srv, manifestWith()); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestResolveAbortFailsOnceWithoutLaterProgress(t *testing.T) {
	srv := metaServer(t, map[string]string{
		"1/10": okBody("a.jar"),
		"2/20": "block",
	})
	m := manifestWith([2]int64{1, 10}, [2]int64{2, 20})
	client := fetch.New(nil, fetch.WithHTTPClient(srv.Client()))
	rt := flame.NewResolveTask(m, client, flame.WithMetaBaseURL(srv.URL))

	if rt.CanAbort() {
		t.Fatal("CanAbort should be false before Execute")
	}
	if rt.Abort() {
		t.Fatal("Abort should be a no-op before Execute")
	}

	rt.Execute(context.Background())
	var terminal []task.Event
	abortedAt := -1
	var seen []task.Event
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case ev, ok := <-rt.Events():
			if !ok {
				done = true
				break
			}
			seen = append(seen, ev)
			if ev.Terminal() {
				terminal = append(terminal, ev)
			}
			if ev.Kind == task.EventProgress && ev.Current == 1 && abortedAt < 0 {
				if !rt.Abort() {
					t.Fatal("Abort returned false while fetches were in flight")
				}
				abortedAt = len(seen)
			}
		case <-timeout:
			t.Fatal("timed out")
		}
	}

	if abortedAt < 0 {
		t.Fatalf("never saw the first progress tick: %+v", seen)
	}
	if len(terminal) != 1 || terminal[0].Kind != task.EventFailed {
		t.Fatalf("expected exactly one failure, got %+v", terminal)
	}
	if terminal[0].Message != i18n.ResolveAborted || !errors.Is(terminal[0].Err, services.ErrAborted) {
		t.Fatalf("unexpected terminal event %+v", terminal[0])
	}
	for _, ev := range seen[abortedAt:] {
		if ev.Kind == task.EventProgress {
			t.Fatalf("progress after abort: %+v", ev)
		}
	}
	if !m.Files[0].Resolved || m.Files[1].Resolved {
		t.Fatalf("expected arrived result applied and blocked one unresolved: %+v", m.Files)
	}
}

func TestResolveGermanMessages(t *testing.T) {
	srv := metaServer(t, nil)
	m := manifestWith([2]int64{9, 90})
	client := fetch.New(nil, fetch.WithHTTPClient(srv.Client()))
	rt := flame.NewResolveTask(m, client, flame.WithMetaBaseURL(srv.URL), flame.WithPrinter(i18n.New("de")))
	err := task.Run(context.Background(), rt, nil)
	if err == nil || err.Error() != "Einige Mod-IDs konnten nicht aufgelöst werden." {
		t.Fatalf("expected german failure, got %v", err)
	}
}
