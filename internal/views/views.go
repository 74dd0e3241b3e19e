// ABOUTME: Pure view builders producing message text and inline button grids
// ABOUTME: Implements the fixed pagination layout shared by playlist and audio pages

package views

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tonehoard/tonehoard/internal/command"
	"github.com/tonehoard/tonehoard/internal/store"
)

// PageSize is the fixed number of items per page.
const PageSize = 10

// itemsPerRow is how many item buttons fit on one keyboard row.
const itemsPerRow = 5

// Button is one inline keyboard button: a visible label and an opaque
// callback payload.
type Button struct {
	Label string
	Data  string
}

// View is a rendered message: text plus an optional button grid.
type View struct {
	Text    string
	Buttons [][]Button
}

// HasButtons reports whether the view carries any keyboard at all.
func (v View) HasButtons() bool {
	return len(v.Buttons) > 0
}

// PlaylistPage is the input for PlaylistView.
type PlaylistPage struct {
	Items  []*store.Playlist
	Offset int
	Total  int

	// OwnerID scopes the page to one account's playlists; empty means the
	// global listing.
	OwnerID string

	// AdminMode renders the administered-lists scope instead of the owned one.
	AdminMode bool

	// ViewerID enables the create-list row when non-empty.
	ViewerID string
}

// PlaylistView renders one page of playlists.
// Items 1-5 form button row 0, items 6-10 row 1; labels are the 1-based
// absolute positions. A navigation row follows when the dataset is nonempty,
// then the scope toggle, then (with a viewer) the create row.
func PlaylistView(p PlaylistPage) View {
	var lines []string
	for i, item := range p.Items {
		lines = append(lines, fmt.Sprintf("%d. %s (%d sounds)", p.Offset+i+1, item.Name, item.AudioCount))
	}

	var buttons [][]Button
	for i, item := range p.Items {
		label := strconv.Itoa(p.Offset + i + 1)
		data := command.ListInfo{ListID: item.ID}.Encode()
		buttons = appendItemButton(buttons, i, Button{Label: label, Data: data})
	}

	if nav, ok := navRow(p.Total, p.Offset, func(offset int) string {
		return command.ShowList{OwnerID: p.OwnerID, Offset: offset}.Encode()
	}); ok {
		buttons = append(buttons, nav)
	}

	if p.AdminMode {
		buttons = append(buttons, []Button{{Label: "Mode: Admin", Data: command.ListSwitch{}.Encode()}})
	} else {
		buttons = append(buttons, []Button{{Label: "Mode: Owned", Data: command.ListSwitch{ToAdmin: true}.Encode()}})
	}

	if p.ViewerID != "" {
		buttons = append(buttons, []Button{{
			Label: "Create new playlist",
			Data:  command.ListCreate{OwnerID: p.ViewerID}.Encode(),
		}})
	}

	return View{
		Text:    "Playlist:\n" + strings.Join(lines, "\n"),
		Buttons: buttons,
	}
}

// ListDetailView renders one playlist's detail with permission-gated actions.
// Add/delete-sounds need owner or admin; admin management, rename and delete
// need the owner.
func ListDetailView(list *store.Playlist, viewerID string) View {
	canEdit := list.CanEdit(viewerID)
	isOwner := list.IsOwner(viewerID)

	var row0 []Button
	if canEdit {
		row0 = append(row0, Button{Label: "Add sounds", Data: command.ListAudioAdd{ListID: list.ID}.Encode()})
	}
	row0 = append(row0, Button{Label: "Show sounds", Data: command.ListAudioPage{ListID: list.ID}.Encode()})
	if canEdit {
		row0 = append(row0, Button{Label: "Delete sounds", Data: command.ListAudioPage{DeleteMode: true, ListID: list.ID}.Encode()})
	}

	buttons := [][]Button{row0}
	if isOwner {
		buttons = append(buttons,
			[]Button{
				{Label: "Add Admin", Data: command.ListAdminAdd{ListID: list.ID}.Encode()},
				{Label: "Remove Admin", Data: command.ListAdminRemove{ListID: list.ID}.Encode()},
			},
			[]Button{
				{Label: "Rename", Data: command.ListRename{ListID: list.ID}.Encode()},
				{Label: "Delete", Data: command.ListDelete{ListID: list.ID}.Encode()},
			},
		)
	}

	text := fmt.Sprintf("ID: %s\nName: %s\nOwner: %s\nSounds: %d\nAdmins: %s",
		list.ID, list.Name, list.OwnerID, list.AudioCount, strings.Join(list.Admins, ", "))
	return View{Text: text, Buttons: buttons}
}

// AudioPage is the input for AudioPageView.
type AudioPage struct {
	ListID string
	Items  []*store.Audio
	Offset int
	Total  int

	// DeleteMode flips item payloads from detail to two-phase delete and
	// changes the heading; the layout is unchanged.
	DeleteMode bool
}

// AudioPageView renders one page of a playlist's tracks.
func AudioPageView(p AudioPage) View {
	heading := "Sound list:"
	if p.DeleteMode {
		heading = "Choose sound to delete:"
	}

	var lines []string
	for i, item := range p.Items {
		line := fmt.Sprintf("%d. %s", p.Offset+i+1, item.Title)
		if item.Artist != "" {
			line += fmt.Sprintf(" (%s)", item.Artist)
		}
		lines = append(lines, line)
	}

	var buttons [][]Button
	for i, item := range p.Items {
		label := strconv.Itoa(p.Offset + i + 1)
		var data string
		if p.DeleteMode {
			data = command.ListAudioDel{ListID: p.ListID, AudioID: item.ID}.Encode()
		} else {
			data = command.AudioInfo{AudioID: item.ID}.Encode()
		}
		buttons = appendItemButton(buttons, i, Button{Label: label, Data: data})
	}

	if nav, ok := navRow(p.Total, p.Offset, func(offset int) string {
		return command.ListAudioPage{DeleteMode: p.DeleteMode, ListID: p.ListID, Offset: offset}.Encode()
	}); ok {
		buttons = append(buttons, nav)
	}

	return View{
		Text:    heading + "\n" + strings.Join(lines, "\n"),
		Buttons: buttons,
	}
}

// AudioDetailText renders a track's in-place detail text.
func AudioDetailText(a *store.Audio) string {
	return fmt.Sprintf("ID: %s\nTitle: %s", a.ID, a.Title)
}

// ConfirmRow builds the single-button confirmation row for two-phase deletes.
func ConfirmRow(data string) [][]Button {
	return [][]Button{{{Label: "Yes", Data: data}}}
}

// DeletedRow is the inert marker a confirmation message is edited to after
// the destructive action runs.
func DeletedRow() [][]Button {
	return [][]Button{{{Label: "Deleted", Data: "dummy"}}}
}

// DoneRow builds the collecting-session terminator button.
func DoneRow(listID string) [][]Button {
	return [][]Button{{{Label: "Done", Data: command.ListAudioAdd{ListID: listID, Done: true}.Encode()}}}
}

// appendItemButton places an item button on row 0 or row 1 by page position.
func appendItemButton(buttons [][]Button, index int, b Button) [][]Button {
	row := index / itemsPerRow
	for len(buttons) <= row {
		buttons = append(buttons, nil)
	}
	buttons[row] = append(buttons[row], b)
	return buttons
}

// navRow builds the previous/next row. The row is present (possibly empty)
// whenever the dataset is nonempty; platform adapters drop empty rows.
func navRow(total, offset int, encode func(offset int) string) ([]Button, bool) {
	if total <= 0 {
		return nil, false
	}
	row := []Button{}
	if offset-PageSize >= 0 {
		row = append(row, Button{Label: "<", Data: encode(offset - PageSize)})
	}
	if offset+PageSize < total {
		row = append(row, Button{Label: ">", Data: encode(offset + PageSize)})
	}
	return row, true
}
