// Package generation models physical index builds and the alias that fronts them.
package generation

import (
	"sort"
	"strings"

	"github.com/rs/xid"
)

// State is a step of the resynchronization protocol.
type State string

// Resync states, in order. Failed is reachable from any of them.
const (
	StateStart        State = "start"
	StateIndexCreated State = "index_created"
	StateLoading      State = "loading"
	StateAliasSwap    State = "alias_swap"
	StateCleanup      State = "cleanup"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// NewName returns a fresh generation name for alias. Names sort by creation time.
func NewName(alias string) string {
	return alias + "-" + xid.New().String()
}

// IsGenerationOf reports whether name looks like a generation created for alias.
func IsGenerationOf(name, alias string) bool {
	suffix, ok := strings.CutPrefix(name, alias+"-")
	if !ok {
		return false
	}
	_, err := xid.FromString(suffix)
	return err == nil
}

// ActionKind is an alias update verb understood by the search engine.
type ActionKind string

// Alias update verbs.
const (
	ActionAdd         ActionKind = "add"
	ActionRemove      ActionKind = "remove"
	ActionRemoveIndex ActionKind = "remove_index"
)

// AliasAction is one entry of an atomic alias update.
type AliasAction struct {
	Kind  ActionKind
	Index string
	Alias string // empty for ActionRemoveIndex
}

// Swap returns the actions that move alias from previous to next in one request.
// When occupied is set, a concrete index already owns the alias name and is dropped
// in the same request.
func Swap(alias, next string, previous []string, occupied bool) []AliasAction {
	prev := append([]string(nil), previous...)
	sort.Strings(prev)

	actions := make([]AliasAction, 0, len(prev)+2)
	for _, p := range prev {
		actions = append(actions, AliasAction{Kind: ActionRemove, Index: p, Alias: alias})
	}
	if occupied {
		actions = append(actions, AliasAction{Kind: ActionRemoveIndex, Index: alias})
	}
	return append(actions, AliasAction{Kind: ActionAdd, Index: next, Alias: alias})
}

// BulkFailure is a single rejected item of a bulk request.
type BulkFailure struct {
	ID     string
	Status int
	Reason string
}

// BulkResult summarizes a bulk request.
type BulkResult struct {
	Items  int
	Failed []BulkFailure
}
