// ABOUTME: Controller tests covering flows, sessions and permission gating
// ABOUTME: Uses a recording fake sender and a real temp-dir sqlite store

package bot

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonehoard/tonehoard/internal/account"
	"github.com/tonehoard/tonehoard/internal/dispatch"
	"github.com/tonehoard/tonehoard/internal/store"
)

type sentMsg struct {
	out dispatch.Outgoing
	id  int
}

// fakeSender records every outgoing operation and assigns message IDs.
type fakeSender struct {
	mu     sync.Mutex
	sent   []sentMsg
	nextID int
}

func (f *fakeSender) Send(_ context.Context, out dispatch.Outgoing) (dispatch.Sent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := 1000 + f.nextID
	f.sent = append(f.sent, sentMsg{out: out, id: id})
	return dispatch.Sent{ChatID: out.ChatID, MessageID: id}, nil
}

func (f *fakeSender) messages() []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMsg(nil), f.sent...)
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type testBot struct {
	ctx    context.Context
	ctrl   *Controller
	sender *fakeSender
	store  *store.SQLiteStore
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	manager := account.NewManager(st, nil)
	t.Cleanup(manager.Close)

	sender := &fakeSender{}
	queue := dispatch.NewQueue(sender, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go queue.Run(ctx)

	return &testBot{
		ctx:    ctx,
		ctrl:   New(manager, st, st, queue, nil),
		sender: sender,
		store:  st,
	}
}

// waitFor blocks until the nth message containing substr was sent.
func (b *testBot) waitFor(t *testing.T, substr string, n int) sentMsg {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var matches []sentMsg
		for _, m := range b.sender.messages() {
			if strings.Contains(m.out.Text, substr) {
				matches = append(matches, m)
			}
		}
		if len(matches) >= n {
			return matches[n-1]
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("no message containing %q (want occurrence %d)", substr, n)
	return sentMsg{}
}

// waitForPrompt waits for the nth prompt message and for its listener to
// be armed, so a reply delivered right after cannot race the registration.
func (b *testBot) waitForPrompt(t *testing.T, substr string, n int) sentMsg {
	t.Helper()
	m := b.waitFor(t, substr, n)
	deadline := time.Now().Add(2 * time.Second)
	for b.ctrl.prompts.Pending() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("prompt for %q never armed", substr)
		}
		time.Sleep(2 * time.Millisecond)
	}
	return m
}

// settle waits for the send log to stop growing.
func (b *testBot) settle() {
	for {
		n := b.sender.count()
		time.Sleep(20 * time.Millisecond)
		if b.sender.count() == n {
			return
		}
	}
}

func (b *testBot) register(t *testing.T, userID int64, name string) *store.Account {
	t.Helper()
	acct, err := b.store.CreateAccount(context.Background(), name, store.Bind{
		Type: BindType,
		ID:   Identity{UserID: userID}.bind().ID,
	})
	require.NoError(t, err)
	return acct
}

func msgFrom(userID int64, messageID int) Incoming {
	return Incoming{ChatID: 1, MessageID: messageID, From: Identity{UserID: userID}}
}

func cbFrom(userID int64, messageID int, data string) Callback {
	return Callback{ChatID: 1, MessageID: messageID, From: Identity{UserID: userID}, Data: data}
}

func TestRegisterCreatesAccountAndShowsInfo(t *testing.T) {
	b := newTestBot(t)

	b.ctrl.Register(b.ctx, msgFrom(7, 10), "")
	info := b.waitFor(t, "ID: ", 1)
	assert.Contains(t, info.out.Text, "Name: ")
	assert.Contains(t, info.out.Text, "telegram(7)")

	acct, err := b.store.GetAccountByBind(context.Background(), store.Bind{Type: BindType, ID: "7"})
	require.NoError(t, err)
	assert.Equal(t, "7", acct.Name)
}

func TestRegisterDuplicateIdentity(t *testing.T) {
	b := newTestBot(t)
	b.register(t, 7, "alice")

	b.ctrl.Register(b.ctx, msgFrom(7, 10), "")
	b.waitFor(t, "User exist", 1)
}

func TestBindTokenRoundTrip(t *testing.T) {
	b := newTestBot(t)
	b.register(t, 7, "alice")

	b.ctrl.Bind(b.ctx, msgFrom(7, 10))
	msg := b.waitFor(t, "Register token: ", 1)
	assert.Contains(t, msg.out.Text, "Expires after one hour")

	lines := strings.SplitN(msg.out.Text, "\n", 2)
	token := strings.TrimPrefix(lines[0], "Register token: ")

	b.ctrl.Register(b.ctx, msgFrom(8, 11), token)
	info := b.waitFor(t, "telegram(7), telegram(8)", 1)
	assert.Contains(t, info.out.Text, "Name: alice")

	// Second consumption must fail.
	b.ctrl.Register(b.ctx, msgFrom(9, 12), token)
	b.waitFor(t, "Token not found!", 1)
}

func TestUnregisteredSenderIsGated(t *testing.T) {
	b := newTestBot(t)

	b.ctrl.ShowList(b.ctx, msgFrom(7, 10), false)
	gate := b.waitFor(t, notRegisteredText, 1)
	assert.Equal(t, 10, gate.out.ReplyTo)

	b.ctrl.HandleAudio(b.ctx, AudioUpload{Incoming: msgFrom(7, 11), FileID: "f1", Title: "t"})
	b.waitFor(t, notRegisteredText, 2)
}

func TestShowListRendersOwnedPage(t *testing.T) {
	b := newTestBot(t)
	acct := b.register(t, 7, "alice")
	_, err := b.store.CreatePlaylist(context.Background(), "mix", acct.ID)
	require.NoError(t, err)

	b.ctrl.ShowList(b.ctx, msgFrom(7, 10), false)
	msg := b.waitFor(t, "Playlist:", 1)
	assert.Contains(t, msg.out.Text, "1. mix (0 sounds)")
	assert.NotEmpty(t, msg.out.Buttons)
}

func TestUnknownCallbackIsSilent(t *testing.T) {
	b := newTestBot(t)
	b.register(t, 7, "alice")

	b.ctrl.HandleCallback(b.ctx, cbFrom(7, 500, "dummy"))
	b.settle()
	assert.Zero(t, b.sender.count())
}

func TestCreateListFlow(t *testing.T) {
	b := newTestBot(t)
	acct := b.register(t, 7, "alice")

	b.ctrl.HandleCallback(b.ctx, cbFrom(7, 500, "ListCreate "+acct.ID))
	promptMsg := b.waitForPrompt(t, "Enter name for new playlist", 1)
	assert.True(t, promptMsg.out.ForceReply)

	consumed := b.ctrl.HandleReply(msgFrom(7, 20), promptMsg.id, "road trip")
	assert.True(t, consumed)
	ok := b.waitFor(t, "Success!", 1)
	assert.Equal(t, 20, ok.out.ReplyTo)

	lists, total, err := b.store.ListPlaylistsByOwner(context.Background(), acct.ID, 0, 10)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "road trip", lists[0].Name)
}

func TestCreateListRequiresMatchingUser(t *testing.T) {
	b := newTestBot(t)
	acct := b.register(t, 7, "alice")
	b.register(t, 8, "bob")

	b.ctrl.HandleCallback(b.ctx, cbFrom(8, 500, "ListCreate "+acct.ID))
	b.settle()
	assert.Zero(t, b.sender.count())
}

func TestRenameFlow(t *testing.T) {
	b := newTestBot(t)
	acct := b.register(t, 7, "alice")
	list, err := b.store.CreatePlaylist(context.Background(), "mix", acct.ID)
	require.NoError(t, err)

	b.ctrl.HandleCallback(b.ctx, cbFrom(7, 500, "ListRename "+list.ID))
	promptMsg := b.waitForPrompt(t, "Enter new name", 1)

	b.ctrl.HandleReply(msgFrom(7, 21), promptMsg.id, "remix")
	b.waitFor(t, "Success!", 1)

	got, err := b.store.GetPlaylist(context.Background(), list.ID)
	require.NoError(t, err)
	assert.Equal(t, "remix", got.Name)
}

func TestRenameDeniedForNonOwner(t *testing.T) {
	b := newTestBot(t)
	acct := b.register(t, 7, "alice")
	b.register(t, 8, "bob")
	list, err := b.store.CreatePlaylist(context.Background(), "mix", acct.ID)
	require.NoError(t, err)

	b.ctrl.HandleCallback(b.ctx, cbFrom(8, 500, "ListRename "+list.ID))
	b.settle()
	assert.Zero(t, b.sender.count(), "denial must be silent")
}

func TestAdminAddFlow(t *testing.T) {
	b := newTestBot(t)
	owner := b.register(t, 7, "alice")
	target := b.register(t, 8, "bob")
	list, err := b.store.CreatePlaylist(context.Background(), "mix", owner.ID)
	require.NoError(t, err)

	b.ctrl.HandleCallback(b.ctx, cbFrom(7, 500, "ListAdminAdd "+list.ID))
	promptMsg := b.waitForPrompt(t, "Enter user's telegram id to add admin", 1)

	b.ctrl.HandleReply(msgFrom(7, 22), promptMsg.id, "8")
	b.waitFor(t, "Success!", 1)

	got, err := b.store.GetPlaylist(context.Background(), list.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{target.ID}, got.Admins)
}

func TestAdminAddRejectsSelf(t *testing.T) {
	b := newTestBot(t)
	owner := b.register(t, 7, "alice")
	list, err := b.store.CreatePlaylist(context.Background(), "mix", owner.ID)
	require.NoError(t, err)

	b.ctrl.HandleCallback(b.ctx, cbFrom(7, 500, "ListAdminAdd "+list.ID))
	promptMsg := b.waitForPrompt(t, "Enter user's telegram id to add admin", 1)

	b.ctrl.HandleReply(msgFrom(7, 22), promptMsg.id, "7")
	b.waitFor(t, "You are adding your self!", 1)

	got, err := b.store.GetPlaylist(context.Background(), list.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Admins)
}

func TestAdminAddUnknownTarget(t *testing.T) {
	b := newTestBot(t)
	owner := b.register(t, 7, "alice")
	list, err := b.store.CreatePlaylist(context.Background(), "mix", owner.ID)
	require.NoError(t, err)

	b.ctrl.HandleCallback(b.ctx, cbFrom(7, 500, "ListAdminAdd "+list.ID))
	promptMsg := b.waitForPrompt(t, "Enter user's telegram id", 1)

	b.ctrl.HandleReply(msgFrom(7, 22), promptMsg.id, "999")
	b.waitFor(t, "User not found or not registered!", 1)
}

func TestAdminRemoveFlow(t *testing.T) {
	b := newTestBot(t)
	owner := b.register(t, 7, "alice")
	target := b.register(t, 8, "bob")
	list, err := b.store.CreatePlaylist(context.Background(), "mix", owner.ID)
	require.NoError(t, err)
	_, err = b.store.AddAdmin(context.Background(), list.ID, target.ID)
	require.NoError(t, err)

	b.ctrl.HandleCallback(b.ctx, cbFrom(7, 500, "ListAdminRemove "+list.ID))
	promptMsg := b.waitForPrompt(t, "Enter user's telegram id to remove admin", 1)

	b.ctrl.HandleReply(msgFrom(7, 22), promptMsg.id, "8")
	b.waitFor(t, "Success!", 1)

	got, err := b.store.GetPlaylist(context.Background(), list.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Admins)
}

func TestListDeleteTwoPhase(t *testing.T) {
	b := newTestBot(t)
	owner := b.register(t, 7, "alice")
	list, err := b.store.CreatePlaylist(context.Background(), "mix", owner.ID)
	require.NoError(t, err)

	// First press only asks.
	b.ctrl.HandleCallback(b.ctx, cbFrom(7, 500, "ListDelete "+list.ID))
	confirm := b.waitFor(t, "Are you sure delete list mix?", 1)
	require.Len(t, confirm.out.Buttons, 1)
	assert.Equal(t, "ListDelete "+list.ID+" y", confirm.out.Buttons[0][0].Data)

	_, err = b.store.GetPlaylist(context.Background(), list.ID)
	require.NoError(t, err, "unconfirmed press must not mutate storage")

	// Confirmed press deletes and marks the message inert.
	b.ctrl.HandleCallback(b.ctx, cbFrom(7, confirm.id, "ListDelete "+list.ID+" y"))
	b.settle()

	_, err = b.store.GetPlaylist(context.Background(), list.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	var marked bool
	for _, m := range b.sender.messages() {
		if m.out.EditMarkupOnly && m.out.Edit == confirm.id {
			marked = true
			assert.Equal(t, "Deleted", m.out.Buttons[0][0].Label)
		}
	}
	assert.True(t, marked, "confirmation message must be edited to the inert marker")
}

func TestAudioDeleteTwoPhase(t *testing.T) {
	b := newTestBot(t)
	owner := b.register(t, 7, "alice")
	list, err := b.store.CreatePlaylist(context.Background(), "mix", owner.ID)
	require.NoError(t, err)
	track, err := b.store.CreateAudio(context.Background(), owner.ID, "tg://f1", store.AudioMeta{Title: "song"})
	require.NoError(t, err)
	_, err = b.store.AddAudio(context.Background(), list.ID, track.ID)
	require.NoError(t, err)

	b.ctrl.HandleCallback(b.ctx, cbFrom(7, 500, "ListAudioDel "+list.ID+" "+track.ID))
	confirm := b.waitFor(t, "Are you sure delete song from list mix?", 1)

	has, err := b.store.HasAudio(context.Background(), list.ID, track.ID)
	require.NoError(t, err)
	assert.True(t, has)

	b.ctrl.HandleCallback(b.ctx, cbFrom(7, confirm.id, "ListAudioDel "+list.ID+" "+track.ID+" y"))
	b.settle()

	has, err = b.store.HasAudio(context.Background(), list.ID, track.ID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestCollectingSession(t *testing.T) {
	b := newTestBot(t)
	owner := b.register(t, 7, "alice")
	list, err := b.store.CreatePlaylist(context.Background(), "mix", owner.ID)
	require.NoError(t, err)
	track, err := b.store.CreateAudio(context.Background(), owner.ID, "tg://f1", store.AudioMeta{Title: "song"})
	require.NoError(t, err)

	// Outside a session a bare ID does nothing.
	b.ctrl.HandleHexID(b.ctx, msgFrom(7, 30), track.ID)
	b.settle()
	assert.Zero(t, b.sender.count())

	b.ctrl.HandleCallback(b.ctx, cbFrom(7, 500, "ListAudioAdd "+list.ID))
	start := b.waitFor(t, "Send me audio file or sound ID you want add to list mix", 1)
	require.Len(t, start.out.Buttons, 1)
	assert.Equal(t, "Done", start.out.Buttons[0][0].Label)

	b.ctrl.HandleHexID(b.ctx, msgFrom(7, 31), track.ID)
	b.waitFor(t, "Added to list!", 1)

	has, err := b.store.HasAudio(context.Background(), list.ID, track.ID)
	require.NoError(t, err)
	assert.True(t, has)

	b.ctrl.HandleHexID(b.ctx, msgFrom(7, 32), store.NewID())
	b.waitFor(t, "Sound ID not found in database", 1)

	b.ctrl.HandleCallback(b.ctx, cbFrom(7, start.id, "ListAudioAdd "+list.ID+" done"))
	b.waitFor(t, "Now this list have 1 sounds!", 1)

	// Session cleared: a bare ID is ignored again.
	before := b.sender.count()
	b.ctrl.HandleHexID(b.ctx, msgFrom(7, 33), track.ID)
	b.settle()
	assert.Equal(t, before, b.sender.count())
}

func TestAudioUploadWithTitle(t *testing.T) {
	b := newTestBot(t)
	b.register(t, 7, "alice")

	b.ctrl.HandleAudio(b.ctx, AudioUpload{
		Incoming: msgFrom(7, 40),
		FileID:   "f1",
		Title:    "song",
		Artist:   "band",
		Duration: 90,
	})
	b.waitFor(t, "Processing...", 1)
	done := b.waitFor(t, "Title: song", 1)
	assert.NotZero(t, done.out.Edit, "result must edit the Processing message")

	track, err := b.store.GetAudioBySource(context.Background(), "tg://f1")
	require.NoError(t, err)
	assert.Equal(t, "band", track.Artist)
}

func TestTitleFlowRetriesThenSucceeds(t *testing.T) {
	b := newTestBot(t)
	b.register(t, 7, "alice")

	b.ctrl.HandleDocument(b.ctx, DocumentUpload{
		Incoming: msgFrom(7, 40),
		FileID:   "f1",
		FileName: "song.mp3",
	})

	// Attempts 1 and 2 answered invalidly, attempt 3 validly.
	p1 := b.waitForPrompt(t, "The music doesn't have a title.", 1)
	b.ctrl.HandleReply(msgFrom(7, 41), p1.id, "")
	b.waitFor(t, "It doesn't look like a title.", 1)

	p2 := b.waitForPrompt(t, "The music doesn't have a title.", 2)
	b.ctrl.HandleReply(msgFrom(7, 42), p2.id, "")
	b.waitFor(t, "It doesn't look like a title.", 2)

	p3 := b.waitForPrompt(t, "The music doesn't have a title.", 3)
	b.ctrl.HandleReply(msgFrom(7, 43), p3.id, "real title")
	b.waitFor(t, "Title set", 1)
	b.waitFor(t, "Title: real title", 1)

	track, err := b.store.GetAudioBySource(context.Background(), "tg://f1")
	require.NoError(t, err)
	assert.Equal(t, "real title", track.Title)
}

func TestTitleFlowAbortsAfterThreeInvalid(t *testing.T) {
	b := newTestBot(t)
	b.register(t, 7, "alice")

	b.ctrl.HandleDocument(b.ctx, DocumentUpload{
		Incoming: msgFrom(7, 40),
		FileID:   "f1",
		FileName: "song.mp3",
	})

	for i := 1; i <= 3; i++ {
		p := b.waitForPrompt(t, "The music doesn't have a title.", i)
		b.ctrl.HandleReply(msgFrom(7, 40+i), p.id, "")
		b.waitFor(t, "It doesn't look like a title.", i)
	}
	b.waitFor(t, "Failed to process the file:", 1)

	_, err := b.store.GetAudioBySource(context.Background(), "tg://f1")
	assert.ErrorIs(t, err, store.ErrNotFound, "aborted flow must not store the track")
}

func TestTitleFlowFilenameShortcut(t *testing.T) {
	b := newTestBot(t)
	b.register(t, 7, "alice")

	b.ctrl.HandleDocument(b.ctx, DocumentUpload{
		Incoming: msgFrom(7, 40),
		FileID:   "f1",
		FileName: "great tune.mp3",
	})

	p := b.waitForPrompt(t, "The music doesn't have a title.", 1)
	require.Len(t, p.out.Buttons, 1)
	data := p.out.Buttons[0][0].Data
	assert.Equal(t, "setTitle/40/great tune", data)

	b.ctrl.HandleCallback(b.ctx, cbFrom(7, p.id, data))
	b.waitFor(t, "Title: great tune", 1)

	// The stale prompt gets deleted.
	var deleted bool
	for _, m := range b.sender.messages() {
		if m.out.Delete == p.id {
			deleted = true
		}
	}
	assert.True(t, deleted)

	track, err := b.store.GetAudioBySource(context.Background(), "tg://f1")
	require.NoError(t, err)
	assert.Equal(t, "great tune", track.Title)
}

func TestTitlePromptIgnoresOtherUsers(t *testing.T) {
	b := newTestBot(t)
	b.register(t, 7, "alice")
	b.register(t, 8, "bob")

	b.ctrl.HandleDocument(b.ctx, DocumentUpload{
		Incoming: msgFrom(7, 40),
		FileID:   "f1",
		FileName: "song.mp3",
	})
	p := b.waitForPrompt(t, "The music doesn't have a title.", 1)

	consumed := b.ctrl.HandleReply(msgFrom(8, 41), p.id, "hijack")
	assert.False(t, consumed)

	b.ctrl.HandleReply(msgFrom(7, 42), p.id, "mine")
	b.waitFor(t, "Title: mine", 1)

	track, err := b.store.GetAudioBySource(context.Background(), "tg://f1")
	require.NoError(t, err)
	assert.Equal(t, "mine", track.Title)
}

func TestLinkIngestion(t *testing.T) {
	b := newTestBot(t)
	b.register(t, 7, "alice")

	b.ctrl.HandleLinks(b.ctx, msgFrom(7, 40), []string{"https://example.com/music/cool song.ogg"})
	b.waitFor(t, "Processing...", 1)

	p := b.waitForPrompt(t, "The music doesn't have a title.", 1)
	require.Len(t, p.out.Buttons, 1)
	assert.Equal(t, "setTitle/40/cool song", p.out.Buttons[0][0].Data)

	b.ctrl.HandleReply(msgFrom(7, 41), p.id, "cool song")
	done := b.waitFor(t, "Title: cool song", 1)
	assert.Equal(t, 40, done.out.ReplyTo, "link results reply to the original message")
}

func TestAudioInfoCallbackEditsInPlace(t *testing.T) {
	b := newTestBot(t)
	owner := b.register(t, 7, "alice")
	track, err := b.store.CreateAudio(context.Background(), owner.ID, "tg://f1", store.AudioMeta{Title: "song"})
	require.NoError(t, err)

	b.ctrl.HandleCallback(b.ctx, cbFrom(7, 500, "AudioInfo "+track.ID))
	msg := b.waitFor(t, "Title: song", 1)
	assert.Equal(t, 500, msg.out.Edit)
	assert.Empty(t, msg.out.Buttons)
}

func TestListSwitchRendersAdminScope(t *testing.T) {
	b := newTestBot(t)
	owner := b.register(t, 7, "alice")
	admin := b.register(t, 8, "bob")
	list, err := b.store.CreatePlaylist(context.Background(), "mix", owner.ID)
	require.NoError(t, err)
	_, err = b.store.AddAdmin(context.Background(), list.ID, admin.ID)
	require.NoError(t, err)

	b.ctrl.HandleCallback(b.ctx, cbFrom(8, 500, "ListSwitch Admin"))
	msg := b.waitFor(t, "1. mix", 1)
	assert.Equal(t, 500, msg.out.Edit)

	var toggle string
	for _, row := range msg.out.Buttons {
		for _, btn := range row {
			if strings.HasPrefix(btn.Label, "Mode:") {
				toggle = btn.Label
			}
		}
	}
	assert.Equal(t, "Mode: Admin", toggle)
}
