// ABOUTME: Tests for the pagination view builders
// ABOUTME: Validates button row layout, navigation visibility, and permission gating

package views

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonehoard/tonehoard/internal/store"
)

func makePlaylists(n int) []*store.Playlist {
	items := make([]*store.Playlist, n)
	for i := range items {
		items[i] = &store.Playlist{
			ID:      fmt.Sprintf("%024d", i),
			Name:    fmt.Sprintf("list-%d", i),
			OwnerID: "owner000000000000000000a",
		}
	}
	return items
}

func makeAudio(n int) []*store.Audio {
	items := make([]*store.Audio, n)
	for i := range items {
		items[i] = &store.Audio{
			ID:    fmt.Sprintf("%024d", i),
			Title: fmt.Sprintf("track-%d", i),
		}
	}
	return items
}

func TestPlaylistView_TwelveItemLayout(t *testing.T) {
	// First page of a 12-item dataset: 10 items shown, two button rows of
	// five, a nav row with only ">".
	v := PlaylistView(PlaylistPage{
		Items:    makePlaylists(10),
		Offset:   0,
		Total:    12,
		ViewerID: "viewer00000000000000000b",
	})

	// rows: items x2, nav, mode toggle, create
	require.Len(t, v.Buttons, 5)

	require.Len(t, v.Buttons[0], 5)
	for i, b := range v.Buttons[0] {
		assert.Equal(t, strconv.Itoa(i+1), b.Label)
	}
	require.Len(t, v.Buttons[1], 5)
	for i, b := range v.Buttons[1] {
		assert.Equal(t, strconv.Itoa(i+6), b.Label)
	}

	nav := v.Buttons[2]
	require.Len(t, nav, 1)
	assert.Equal(t, ">", nav[0].Label)
	assert.Equal(t, "List 10", nav[0].Data)
}

func TestPlaylistView_SecondPage(t *testing.T) {
	v := PlaylistView(PlaylistPage{
		Items:   makePlaylists(2),
		Offset:  10,
		Total:   12,
		OwnerID: "owner000000000000000000a",
	})

	// One item row (2 items), nav, mode toggle; no viewer so no create row
	require.Len(t, v.Buttons, 3)
	require.Len(t, v.Buttons[0], 2)
	assert.Equal(t, "11", v.Buttons[0][0].Label)
	assert.Equal(t, "12", v.Buttons[0][1].Label)

	nav := v.Buttons[1]
	require.Len(t, nav, 1)
	assert.Equal(t, "<", nav[0].Label)
	assert.Equal(t, "List owner000000000000000000a 0", nav[0].Data)
}

func TestPlaylistView_EmptyDataset(t *testing.T) {
	v := PlaylistView(PlaylistPage{ViewerID: "viewer00000000000000000b"})

	assert.Equal(t, "Playlist:\n", v.Text)
	// No item rows, no nav row; mode toggle and create row remain
	require.Len(t, v.Buttons, 2)
	assert.Equal(t, "Mode: Owned", v.Buttons[0][0].Label)
	assert.Equal(t, "Create new playlist", v.Buttons[1][0].Label)
}

func TestPlaylistView_ModeToggle(t *testing.T) {
	owned := PlaylistView(PlaylistPage{AdminMode: false})
	assert.Equal(t, "Mode: Owned", owned.Buttons[0][0].Label)
	assert.Equal(t, "ListSwitch Admin", owned.Buttons[0][0].Data)

	admin := PlaylistView(PlaylistPage{AdminMode: true})
	assert.Equal(t, "Mode: Admin", admin.Buttons[0][0].Label)
	assert.Equal(t, "ListSwitch Owned", admin.Buttons[0][0].Data)
}

func TestPlaylistView_Text(t *testing.T) {
	items := makePlaylists(2)
	items[0].Name = "alpha"
	items[0].AudioCount = 3
	items[1].Name = "beta"

	v := PlaylistView(PlaylistPage{Items: items, Offset: 10, Total: 12})
	assert.Equal(t, "Playlist:\n11. alpha (3 sounds)\n12. beta (0 sounds)", v.Text)
}

func TestListDetailView_OwnerSeesEverything(t *testing.T) {
	list := &store.Playlist{
		ID:      "0123456789abcdef01234567",
		Name:    "mix",
		OwnerID: "owner000000000000000000a",
	}
	v := ListDetailView(list, "owner000000000000000000a")

	require.Len(t, v.Buttons, 3)
	labels := func(row []Button) []string {
		out := make([]string, len(row))
		for i, b := range row {
			out[i] = b.Label
		}
		return out
	}
	assert.Equal(t, []string{"Add sounds", "Show sounds", "Delete sounds"}, labels(v.Buttons[0]))
	assert.Equal(t, []string{"Add Admin", "Remove Admin"}, labels(v.Buttons[1]))
	assert.Equal(t, []string{"Rename", "Delete"}, labels(v.Buttons[2]))
}

func TestListDetailView_AdminSeesEditOnly(t *testing.T) {
	list := &store.Playlist{
		ID:      "0123456789abcdef01234567",
		OwnerID: "owner000000000000000000a",
		Admins:  []string{"admin000000000000000000b"},
	}
	v := ListDetailView(list, "admin000000000000000000b")

	require.Len(t, v.Buttons, 1)
	require.Len(t, v.Buttons[0], 3)
	assert.Equal(t, "Add sounds", v.Buttons[0][0].Label)
	assert.Equal(t, "Delete sounds", v.Buttons[0][2].Label)
}

func TestListDetailView_StrangerSeesShowOnly(t *testing.T) {
	list := &store.Playlist{
		ID:      "0123456789abcdef01234567",
		OwnerID: "owner000000000000000000a",
	}
	v := ListDetailView(list, "nobody00000000000000000c")

	require.Len(t, v.Buttons, 1)
	require.Len(t, v.Buttons[0], 1)
	assert.Equal(t, "Show sounds", v.Buttons[0][0].Label)
	assert.Equal(t, "ListAudio show 0123456789abcdef01234567 0", v.Buttons[0][0].Data)
}

func TestAudioPageView_TwelveItemLayout(t *testing.T) {
	v := AudioPageView(AudioPage{
		ListID: "0123456789abcdef01234567",
		Items:  makeAudio(10),
		Offset: 0,
		Total:  12,
	})

	require.Len(t, v.Buttons, 3)
	require.Len(t, v.Buttons[0], 5)
	require.Len(t, v.Buttons[1], 5)
	assert.Equal(t, "1", v.Buttons[0][0].Label)
	assert.Equal(t, "10", v.Buttons[1][4].Label)

	nav := v.Buttons[2]
	require.Len(t, nav, 1)
	assert.Equal(t, ">", nav[0].Label)
	assert.Equal(t, "ListAudio show 0123456789abcdef01234567 10", nav[0].Data)
}

func TestAudioPageView_DeleteModeChangesPayloadsNotLayout(t *testing.T) {
	page := AudioPage{
		ListID: "0123456789abcdef01234567",
		Items:  makeAudio(3),
		Total:  3,
	}

	show := AudioPageView(page)
	page.DeleteMode = true
	del := AudioPageView(page)

	require.Len(t, show.Buttons, len(del.Buttons))
	assert.Contains(t, show.Text, "Sound list:")
	assert.Contains(t, del.Text, "Choose sound to delete:")

	assert.Equal(t, "AudioInfo "+fmt.Sprintf("%024d", 0), show.Buttons[0][0].Data)
	assert.Equal(t, "ListAudioDel 0123456789abcdef01234567 "+fmt.Sprintf("%024d", 0), del.Buttons[0][0].Data)
}

func TestAudioPageView_ArtistSuffix(t *testing.T) {
	items := makeAudio(2)
	items[0].Artist = "someone"

	v := AudioPageView(AudioPage{ListID: "x", Items: items, Total: 2})
	assert.Equal(t, "Sound list:\n1. track-0 (someone)\n2. track-1", v.Text)
}

func TestAudioPageView_MiddlePageHasBothNavButtons(t *testing.T) {
	v := AudioPageView(AudioPage{
		ListID: "0123456789abcdef01234567",
		Items:  makeAudio(10),
		Offset: 10,
		Total:  25,
	})
	nav := v.Buttons[2]
	require.Len(t, nav, 2)
	assert.Equal(t, "<", nav[0].Label)
	assert.Equal(t, ">", nav[1].Label)
}
