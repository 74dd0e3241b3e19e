// ABOUTME: Typed callback command set parsed from inline button payloads
// ABOUTME: One Parse function turns "verb arg..." strings into a closed command union

package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknown is returned for a verb outside the command set.
var ErrUnknown = errors.New("unknown command")

// ErrMalformed is returned when a known verb carries invalid arguments.
var ErrMalformed = errors.New("malformed command")

// Command is one parsed button-press payload. Implementations are the only
// payloads the bot ever emits, so Parse(c.Encode()) round-trips.
type Command interface {
	// Encode renders the command back into its wire payload.
	Encode() string
}

// AudioInfo shows a track's detail in place.
type AudioInfo struct {
	AudioID string
}

// ShowList renders a playlist page. OwnerID is empty for the global listing.
type ShowList struct {
	OwnerID string
	Offset  int
}

// ListInfo renders the list-detail view.
type ListInfo struct {
	ListID string
}

// ListCreate starts the create-list prompt flow.
type ListCreate struct {
	OwnerID string
}

// ListAudioAdd toggles the audio-collecting session for a list.
type ListAudioAdd struct {
	ListID string
	Done   bool
}

// ListAudioDel deletes a track from a list, in two phases.
type ListAudioDel struct {
	ListID    string
	AudioID   string
	Confirmed bool
}

// ListAudioPage renders one page of a list's tracks.
type ListAudioPage struct {
	DeleteMode bool
	ListID     string
	Offset     int
}

// ListSwitch re-renders the playlist page in the other scope.
type ListSwitch struct {
	ToAdmin bool
}

// ListAdminAdd starts the add-admin prompt flow.
type ListAdminAdd struct {
	ListID string
}

// ListAdminRemove starts the remove-admin prompt flow.
type ListAdminRemove struct {
	ListID string
}

// ListRename starts the rename prompt flow.
type ListRename struct {
	ListID string
}

// ListDelete deletes a list, in two phases.
type ListDelete struct {
	ListID    string
	Confirmed bool
}

func (c AudioInfo) Encode() string { return "AudioInfo " + c.AudioID }

func (c ShowList) Encode() string {
	if c.OwnerID == "" {
		return fmt.Sprintf("List %d", c.Offset)
	}
	return fmt.Sprintf("List %s %d", c.OwnerID, c.Offset)
}

func (c ListInfo) Encode() string   { return "ListInfo " + c.ListID }
func (c ListCreate) Encode() string { return "ListCreate " + c.OwnerID }

func (c ListAudioAdd) Encode() string {
	if c.Done {
		return "ListAudioAdd " + c.ListID + " done"
	}
	return "ListAudioAdd " + c.ListID
}

func (c ListAudioDel) Encode() string {
	if c.Confirmed {
		return fmt.Sprintf("ListAudioDel %s %s y", c.ListID, c.AudioID)
	}
	return fmt.Sprintf("ListAudioDel %s %s", c.ListID, c.AudioID)
}

func (c ListAudioPage) Encode() string {
	mode := "show"
	if c.DeleteMode {
		mode = "delete"
	}
	return fmt.Sprintf("ListAudio %s %s %d", mode, c.ListID, c.Offset)
}

func (c ListSwitch) Encode() string {
	if c.ToAdmin {
		return "ListSwitch Admin"
	}
	return "ListSwitch Owned"
}

func (c ListAdminAdd) Encode() string    { return "ListAdminAdd " + c.ListID }
func (c ListAdminRemove) Encode() string { return "ListAdminRemove " + c.ListID }
func (c ListRename) Encode() string      { return "ListRename " + c.ListID }

func (c ListDelete) Encode() string {
	if c.Confirmed {
		return "ListDelete " + c.ListID + " y"
	}
	return "ListDelete " + c.ListID
}

// Parse turns one callback payload into its typed command.
// Verbs outside the set yield ErrUnknown; bad arguments yield ErrMalformed.
func Parse(payload string) (Command, error) {
	fields := strings.Fields(payload)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	verb, args := fields[0], fields[1:]

	switch verb {
	case "AudioInfo":
		if len(args) != 1 {
			return nil, badArgs(verb, args)
		}
		return AudioInfo{AudioID: args[0]}, nil

	case "List":
		switch len(args) {
		case 1:
			offset, err := strconv.Atoi(args[0])
			if err != nil {
				return nil, badArgs(verb, args)
			}
			return ShowList{Offset: offset}, nil
		case 2:
			offset, err := strconv.Atoi(args[1])
			if err != nil {
				return nil, badArgs(verb, args)
			}
			return ShowList{OwnerID: args[0], Offset: offset}, nil
		default:
			return nil, badArgs(verb, args)
		}

	case "ListInfo":
		if len(args) != 1 {
			return nil, badArgs(verb, args)
		}
		return ListInfo{ListID: args[0]}, nil

	case "ListCreate":
		if len(args) != 1 {
			return nil, badArgs(verb, args)
		}
		return ListCreate{OwnerID: args[0]}, nil

	case "ListAudioAdd":
		switch {
		case len(args) == 1:
			return ListAudioAdd{ListID: args[0]}, nil
		case len(args) == 2 && args[1] == "done":
			return ListAudioAdd{ListID: args[0], Done: true}, nil
		default:
			return nil, badArgs(verb, args)
		}

	case "ListAudioDel":
		switch len(args) {
		case 2:
			return ListAudioDel{ListID: args[0], AudioID: args[1]}, nil
		case 3:
			return ListAudioDel{ListID: args[0], AudioID: args[1], Confirmed: true}, nil
		default:
			return nil, badArgs(verb, args)
		}

	case "ListAudio":
		// Offset is optional: detail-view buttons omit it.
		if len(args) < 2 || len(args) > 3 {
			return nil, badArgs(verb, args)
		}
		var deleteMode bool
		switch args[0] {
		case "show":
		case "delete":
			deleteMode = true
		default:
			return nil, badArgs(verb, args)
		}
		offset := 0
		if len(args) == 3 {
			var err error
			if offset, err = strconv.Atoi(args[2]); err != nil {
				return nil, badArgs(verb, args)
			}
		}
		return ListAudioPage{DeleteMode: deleteMode, ListID: args[1], Offset: offset}, nil

	case "ListSwitch":
		if len(args) != 1 {
			return nil, badArgs(verb, args)
		}
		switch args[0] {
		case "Admin":
			return ListSwitch{ToAdmin: true}, nil
		case "Owned":
			return ListSwitch{}, nil
		default:
			return nil, badArgs(verb, args)
		}

	case "ListAdminAdd":
		if len(args) != 1 {
			return nil, badArgs(verb, args)
		}
		return ListAdminAdd{ListID: args[0]}, nil

	case "ListAdminRemove":
		if len(args) != 1 {
			return nil, badArgs(verb, args)
		}
		return ListAdminRemove{ListID: args[0]}, nil

	case "ListRename":
		if len(args) != 1 {
			return nil, badArgs(verb, args)
		}
		return ListRename{ListID: args[0]}, nil

	case "ListDelete":
		switch len(args) {
		case 1:
			return ListDelete{ListID: args[0]}, nil
		case 2:
			return ListDelete{ListID: args[0], Confirmed: true}, nil
		default:
			return nil, badArgs(verb, args)
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknown, verb)
	}
}

func badArgs(verb string, args []string) error {
	return fmt.Errorf("%w: %s with args %v", ErrMalformed, verb, args)
}
