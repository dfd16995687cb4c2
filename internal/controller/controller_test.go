package controller

import (
	"context"
	"math/rand"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bunshinctl/internal/api"
	"bunshinctl/internal/stream"
)

type harness struct {
	ctrl    *Controller
	backend *fakeBackend
	dialer  *fakeDialer
	logs    *recordingLogSink
	shell   *recordingShellSink
	view    *recordingView
	ends    chan endEvent
}

type endEvent struct {
	kind   stream.Kind
	connID string
	err    error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		backend: newFakeBackend(),
		dialer:  &fakeDialer{},
		logs:    newRecordingLogSink(),
		shell:   &recordingShellSink{},
		view:    &recordingView{},
		ends:    make(chan endEvent, 16),
	}
	h.backend.defs["web"] = api.Definition{YAML: "services:\n  app:\n    image: nginx", Env: ""}
	h.backend.containers["web"] = []api.Container{{ID: "c1", Name: "web_app"}, {ID: "c2", Name: "web_db"}}
	h.backend.defs["empty"] = api.Definition{}

	base, _ := url.Parse("http://dash.lan:8080")
	h.ctrl = New(Options{
		Backend: h.backend,
		Dialer:  h.dialer,
		BaseURL: base,
		Logs:    h.logs,
		Shell:   h.shell,
		View:    h.view,
		OnEnd: func(kind stream.Kind, connID string, err error) {
			select {
			case h.ends <- endEvent{kind, connID, err}:
			default:
			}
		},
		NewID: sequentialIDs(),
	})
	t.Cleanup(h.ctrl.Teardown)
	return h
}

func (h *harness) selectStack(t *testing.T, name string) Selection {
	t.Helper()
	sel, err := h.ctrl.SelectStack(context.Background(), name)
	require.NoError(t, err)
	return sel
}

func TestSelectStack(t *testing.T) {
	h := newHarness(t)

	sel := h.selectStack(t, "web")
	assert.Equal(t, "web", sel.Stack)
	assert.Equal(t, "services:\n  app:\n    image: nginx", sel.Definition.YAML)
	assert.Equal(t, TabDefinition, h.ctrl.Tab())
	assert.True(t, h.ctrl.Current(sel.Epoch))
	assert.Empty(t, h.ctrl.Containers())
	assert.Equal(t, []Tab{TabDefinition}, h.view.Tabs())
}

func TestSelectStack_ResetsEverything(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.selectStack(t, "web")
	require.NoError(t, h.ctrl.SelectTab(ctx, TabShell))
	require.NoError(t, h.ctrl.SelectContainer(ctx, stream.KindShell, "c2"))
	require.Len(t, h.shell.Terminals(), 2)

	second := h.selectStack(t, "empty")

	assert.NotEqual(t, first.Epoch, second.Epoch)
	assert.False(t, h.ctrl.Current(first.Epoch))
	assert.Equal(t, TabDefinition, h.ctrl.Tab())
	assert.Empty(t, h.ctrl.Containers())
	assert.Empty(t, h.ctrl.Target(stream.KindShell))
	assert.Zero(t, h.ctrl.Counters().Live(stream.KindShell))
	for _, term := range h.shell.Terminals() {
		assert.True(t, term.Disposed())
	}
}

func TestSelectStack_LoadErrorKeepsSelection(t *testing.T) {
	h := newHarness(t)

	sel, err := h.ctrl.SelectStack(context.Background(), "missing")
	require.Error(t, err)
	var se *api.StatusError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, "missing", h.ctrl.Stack())
	assert.True(t, h.ctrl.Current(sel.Epoch))
}

func TestSelectTab_NoStack(t *testing.T) {
	h := newHarness(t)

	assert.ErrorIs(t, h.ctrl.SelectTab(context.Background(), TabLogs), ErrNoStack)
	assert.NoError(t, h.ctrl.SelectTab(context.Background(), TabDefinition))
	assert.Empty(t, h.dialer.dialed())
}

func TestSelectTab_OpensFirstContainer(t *testing.T) {
	h := newHarness(t)
	h.selectStack(t, "web")

	require.NoError(t, h.ctrl.SelectTab(context.Background(), TabLogs))

	conn := h.dialer.last()
	require.NotNil(t, conn)
	assert.Equal(t, "ws://dash.lan:8080/ws/logs?container=c1&name=web", conn.url)
	assert.Equal(t, "c1", h.ctrl.Target(stream.KindLogs))
	assert.Len(t, h.ctrl.Containers(), 2)

	events := h.logs.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, logEvent{"connecting", "id-2", "id-1"}, events[0])
	assert.Equal(t, "id-2", h.ctrl.ConnID(stream.KindLogs))
}

func TestSelectTab_AtMostOneConnectionPerKind(t *testing.T) {
	h := newHarness(t)
	h.selectStack(t, "web")
	ctx := context.Background()

	tabs := []Tab{TabDefinition, TabLogs, TabShell}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		tab := tabs[rng.Intn(len(tabs))]
		require.NoError(t, h.ctrl.SelectTab(ctx, tab))

		counters := h.ctrl.Counters()
		logsLive := counters.Live(stream.KindLogs)
		shellLive := counters.Live(stream.KindShell)
		require.LessOrEqual(t, logsLive, 1, "step %d", i)
		require.LessOrEqual(t, shellLive, 1, "step %d", i)

		switch tab {
		case TabDefinition:
			require.Zero(t, logsLive+shellLive, "step %d", i)
		case TabLogs:
			require.Equal(t, 1, logsLive, "step %d", i)
			require.Zero(t, shellLive, "step %d", i)
		case TabShell:
			require.Equal(t, 1, shellLive, "step %d", i)
			require.Zero(t, logsLive, "step %d", i)
		}
	}

	open := 0
	for _, c := range h.dialer.dialed() {
		if c.Open() {
			open++
		}
	}
	assert.LessOrEqual(t, open, 1)
}

func TestSelectTab_RoundTripClosesThenReopens(t *testing.T) {
	h := newHarness(t)
	h.selectStack(t, "web")
	ctx := context.Background()

	require.NoError(t, h.ctrl.SelectTab(ctx, TabLogs))
	first := h.dialer.last()
	require.NoError(t, h.ctrl.SelectTab(ctx, TabDefinition))
	require.NoError(t, h.ctrl.SelectTab(ctx, TabLogs))
	second := h.dialer.last()

	require.NotSame(t, first, second)
	assert.Equal(t, int32(1), first.closes.Load())
	assert.False(t, first.Open())
	assert.True(t, second.Open())
	assert.Equal(t, 2, h.ctrl.Counters().Opened[stream.KindLogs])
	assert.Equal(t, 1, h.ctrl.Counters().Closed[stream.KindLogs])
}

func TestSelectTab_SameTabReopens(t *testing.T) {
	h := newHarness(t)
	h.selectStack(t, "web")
	ctx := context.Background()

	require.NoError(t, h.ctrl.SelectTab(ctx, TabShell))
	require.NoError(t, h.ctrl.SelectTab(ctx, TabShell))

	conns := h.dialer.dialed()
	require.Len(t, conns, 2)
	assert.False(t, conns[0].Open())
	assert.Equal(t, 1, h.ctrl.Counters().Live(stream.KindShell))

	terms := h.shell.Terminals()
	require.Len(t, terms, 2)
	assert.True(t, terms[0].Disposed())
	assert.False(t, terms[1].Disposed())
	assert.Equal(t, 80, terms[1].cols)
	assert.Equal(t, 24, terms[1].rows)
}

func TestSelectTab_NoContainers(t *testing.T) {
	h := newHarness(t)
	h.selectStack(t, "empty")
	ctx := context.Background()

	require.NoError(t, h.ctrl.SelectTab(ctx, TabLogs))
	require.NoError(t, h.ctrl.SelectTab(ctx, TabShell))

	assert.Empty(t, h.dialer.dialed())
	assert.Equal(t, []logEvent{{"none", "", "id-1"}}, h.logs.Events())
	assert.Equal(t, 1, h.shell.None())
	assert.Empty(t, h.shell.Terminals())
}

func TestSelectTab_ContainerRefreshFailureKeepsList(t *testing.T) {
	h := newHarness(t)
	h.selectStack(t, "web")
	ctx := context.Background()

	require.NoError(t, h.ctrl.SelectTab(ctx, TabLogs))
	h.backend.mu.Lock()
	h.backend.containersErr = errBoom
	h.backend.mu.Unlock()

	require.NoError(t, h.ctrl.SelectTab(ctx, TabShell))
	assert.Len(t, h.ctrl.Containers(), 2)
	assert.Equal(t, 1, h.ctrl.Counters().Live(stream.KindShell))
}

func TestSelectTab_ContainerFetchFailureReported(t *testing.T) {
	h := newHarness(t)
	h.selectStack(t, "web")
	h.backend.mu.Lock()
	h.backend.containersErr = errBoom
	h.backend.mu.Unlock()
	ctx := context.Background()

	err := h.ctrl.SelectTab(ctx, TabLogs)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, []logEvent{
		{"connecting", "id-2", "id-1"},
		{"failed", "id-2", "list containers: boom"},
	}, h.logs.Events())

	err = h.ctrl.SelectTab(ctx, TabShell)
	require.ErrorIs(t, err, errBoom)
	terms := h.shell.Terminals()
	require.Len(t, terms, 1)
	assert.Equal(t, ShellErrorText, terms[0].Content())
	assert.Zero(t, h.shell.None())

	assert.Empty(t, h.dialer.dialed())
	assert.Zero(t, h.ctrl.Counters().Opened[stream.KindLogs])
	ended := <-h.ends
	assert.Equal(t, stream.KindLogs, ended.kind)
	assert.Equal(t, "id-2", ended.connID)
	assert.Equal(t, stream.KindShell, (<-h.ends).kind)
}

func TestSinksCarryEpoch(t *testing.T) {
	h := newHarness(t)
	first := h.selectStack(t, "web")
	ctx := context.Background()
	require.NoError(t, h.ctrl.SelectTab(ctx, TabLogs))
	require.NoError(t, h.ctrl.SelectTab(ctx, TabShell))

	second := h.selectStack(t, "web")
	require.NoError(t, h.ctrl.SelectTab(ctx, TabShell))
	require.NotEqual(t, first.Epoch, second.Epoch)

	assert.Equal(t, []string{first.Epoch, first.Epoch, first.Epoch, second.Epoch, second.Epoch}, h.view.Epochs())
	assert.Equal(t, first.Epoch, h.logs.Events()[0].text)
	terms := h.shell.Terminals()
	require.Len(t, terms, 2)
	assert.Equal(t, first.Epoch, terms[0].epoch)
	assert.Equal(t, second.Epoch, terms[1].epoch)
}

func TestOnEnd(t *testing.T) {
	h := newHarness(t)
	h.selectStack(t, "web")
	ctx := context.Background()

	require.NoError(t, h.ctrl.SelectTab(ctx, TabLogs))
	conn := h.dialer.last()
	conn.push("last line")
	conn.end(nil)

	select {
	case ev := <-h.ends:
		assert.Equal(t, endEvent{stream.KindLogs, "id-2", nil}, ev)
	case <-time.After(time.Second):
		t.Fatal("OnEnd not called for a normal end")
	}
	assert.Equal(t, []string{"last line"}, h.logs.Lines(), "frames are delivered before the end")

	require.NoError(t, h.ctrl.SelectTab(ctx, TabShell))
	h.ctrl.Teardown()
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, h.ends, "closing a connection is not an end")

	h.dialer.mu.Lock()
	h.dialer.fail = errBoom
	h.dialer.mu.Unlock()
	require.NoError(t, h.ctrl.SelectTab(ctx, TabLogs))
	select {
	case ev := <-h.ends:
		assert.Equal(t, stream.KindLogs, ev.kind)
		assert.ErrorIs(t, ev.err, errBoom)
	default:
		t.Fatal("OnEnd not called for a failed dial")
	}
}

func TestSelectContainer(t *testing.T) {
	h := newHarness(t)
	h.selectStack(t, "web")
	ctx := context.Background()

	require.NoError(t, h.ctrl.SelectTab(ctx, TabLogs))
	first := h.dialer.last()

	require.NoError(t, h.ctrl.SelectContainer(ctx, stream.KindLogs, "c2"))
	second := h.dialer.last()

	assert.False(t, first.Open())
	assert.Contains(t, second.url, "container=c2")
	assert.Equal(t, "c2", h.ctrl.Target(stream.KindLogs))
	assert.Equal(t, 1, h.ctrl.Counters().Live(stream.KindLogs))
	assert.Equal(t, TabLogs, h.ctrl.Tab())
}

func TestSelectContainer_UnknownFallsBackToFirst(t *testing.T) {
	h := newHarness(t)
	h.selectStack(t, "web")
	ctx := context.Background()

	require.NoError(t, h.ctrl.SelectTab(ctx, TabShell))
	require.NoError(t, h.ctrl.SelectContainer(ctx, stream.KindShell, "gone"))

	assert.Equal(t, "c1", h.ctrl.Target(stream.KindShell))
	assert.Contains(t, h.dialer.last().url, "container=c1")
}

func TestSelectContainer_OtherTabOnlyRecordsTarget(t *testing.T) {
	h := newHarness(t)
	h.selectStack(t, "web")
	ctx := context.Background()

	require.NoError(t, h.ctrl.SelectTab(ctx, TabLogs))
	require.NoError(t, h.ctrl.SelectContainer(ctx, stream.KindShell, "c2"))

	assert.Len(t, h.dialer.dialed(), 1)
	assert.Equal(t, "c2", h.ctrl.Target(stream.KindShell))

	require.NoError(t, h.ctrl.SelectTab(ctx, TabShell))
	assert.Contains(t, h.dialer.last().url, "container=c2")
	assert.Equal(t, "c1", h.ctrl.Target(stream.KindLogs))
}

func TestLogLinesInOrder(t *testing.T) {
	h := newHarness(t)
	h.selectStack(t, "web")
	require.NoError(t, h.ctrl.SelectTab(context.Background(), TabLogs))

	conn := h.dialer.last()
	for _, line := range []string{"one\n", "two\n", "three\n"} {
		conn.push(line)
	}

	require.True(t, h.logs.waitFor(func(ev []logEvent) bool { return len(ev) >= 4 }))
	assert.Equal(t, []string{"one\n", "two\n", "three\n"}, h.logs.Lines())
	for _, e := range h.logs.Events() {
		assert.Equal(t, "id-2", e.connID)
	}
}

func TestLateFramesNeverReachSink(t *testing.T) {
	h := newHarness(t)
	h.dialer.hold = true
	h.selectStack(t, "web")
	ctx := context.Background()

	require.NoError(t, h.ctrl.SelectTab(ctx, TabLogs))
	conn := h.dialer.last()
	conn.push("before\n")
	require.True(t, h.logs.waitFor(func(ev []logEvent) bool { return len(ev) == 2 }))

	require.NoError(t, h.ctrl.SelectTab(ctx, TabDefinition))
	conn.push("after\n")
	conn.end(errBoom)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"before\n"}, h.logs.Lines())
	for _, e := range h.logs.Events() {
		assert.NotEqual(t, "failed", e.kind)
	}
}

func TestLogFailureReported(t *testing.T) {
	h := newHarness(t)
	h.selectStack(t, "web")
	require.NoError(t, h.ctrl.SelectTab(context.Background(), TabLogs))

	h.dialer.last().end(errBoom)

	require.True(t, h.logs.waitFor(func(ev []logEvent) bool {
		return len(ev) > 0 && ev[len(ev)-1].kind == "failed"
	}))
	dials := len(h.dialer.dialed())
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, h.dialer.dialed(), dials, "no automatic retry")
}

func TestLogDialFailure(t *testing.T) {
	h := newHarness(t)
	h.dialer.fail = errBoom
	h.selectStack(t, "web")

	require.NoError(t, h.ctrl.SelectTab(context.Background(), TabLogs))

	events := h.logs.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "connecting", events[0].kind)
	assert.Equal(t, logEvent{"failed", "id-2", "boom"}, events[1])
	assert.Zero(t, h.ctrl.Counters().Opened[stream.KindLogs])
}

func TestShellFramesAndFailure(t *testing.T) {
	h := newHarness(t)
	h.selectStack(t, "web")
	require.NoError(t, h.ctrl.SelectTab(context.Background(), TabShell))

	conn := h.dialer.last()
	term := h.shell.Terminals()[0]
	conn.push("/ # ")
	require.True(t, term.waitContains("/ # "))

	conn.end(errBoom)
	require.True(t, term.waitContains(ShellErrorText))
	assert.Equal(t, "/ # "+ShellErrorText, term.Content())
}

func TestShellDialFailureWritesError(t *testing.T) {
	h := newHarness(t)
	h.dialer.fail = errBoom
	h.selectStack(t, "web")

	require.NoError(t, h.ctrl.SelectTab(context.Background(), TabShell))

	terms := h.shell.Terminals()
	require.Len(t, terms, 1)
	assert.Equal(t, ShellErrorText, terms[0].Content())
	assert.False(t, h.ctrl.SendInput([]byte("x")))
}

func TestSendInput(t *testing.T) {
	h := newHarness(t)
	h.selectStack(t, "web")
	ctx := context.Background()

	assert.False(t, h.ctrl.SendInput([]byte("ls\r")), "no shell yet")

	require.NoError(t, h.ctrl.SelectTab(ctx, TabShell))
	conn := h.dialer.last()
	assert.True(t, h.ctrl.SendInput([]byte("ls\r")))
	assert.Equal(t, []string{"ls\r"}, conn.Sent())

	conn.end(nil)
	assert.False(t, h.ctrl.SendInput([]byte("pwd\r")), "shell ended")

	require.NoError(t, h.ctrl.SelectTab(ctx, TabLogs))
	assert.False(t, h.ctrl.SendInput([]byte("pwd\r")), "shell closed")
	assert.Equal(t, []string{"ls\r"}, conn.Sent())
}

func TestTeardown(t *testing.T) {
	h := newHarness(t)
	h.selectStack(t, "web")

	h.ctrl.Teardown()
	assert.Empty(t, h.dialer.dialed())

	require.NoError(t, h.ctrl.SelectTab(context.Background(), TabShell))
	h.ctrl.Teardown()
	h.ctrl.Teardown()

	assert.False(t, h.dialer.last().Open())
	assert.True(t, h.shell.Terminals()[0].Disposed())
	assert.Zero(t, h.ctrl.Counters().Live(stream.KindShell))
	assert.Equal(t, 1, h.ctrl.Counters().Closed[stream.KindShell])
}

func TestRefreshContainers(t *testing.T) {
	h := newHarness(t)

	_, err := h.ctrl.RefreshContainers(context.Background())
	assert.ErrorIs(t, err, ErrNoStack)

	h.selectStack(t, "web")
	list, err := h.ctrl.RefreshContainers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"web_app", "web_db"}, []string{list[0].Name, list[1].Name})
	assert.Empty(t, h.dialer.dialed())
}

func TestTabKind(t *testing.T) {
	k, ok := TabLogs.Kind()
	assert.True(t, ok)
	assert.Equal(t, stream.KindLogs, k)
	_, ok = TabDefinition.Kind()
	assert.False(t, ok)
	assert.True(t, strings.HasPrefix(ShellErrorText, "\r\n"))
}
