package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/wesm/projectsview/internal/correlate"
	"github.com/wesm/projectsview/internal/parser"
	"github.com/wesm/projectsview/internal/testexport"
)

var fixedNow = time.Date(2025, 3, 4, 5, 6, 7, 8, time.UTC)

func fixedOptions(withMessages bool) Options {
	return Options{
		WithMessages: withMessages,
		Policy:       parser.BranchAll,
		Workers:      2,
		Now:          func() time.Time { return fixedNow },
	}
}

func newEngine(
	t *testing.T,
	projects []map[string]any,
	convs ...*testexport.ConversationBuilder,
) *correlate.Engine {
	t.Helper()
	var ps []parser.Project
	require.NoError(t, parser.DecodeDocument(
		strings.NewReader(testexport.ProjectsDocument(projects...)), &ps,
	))
	var cs []parser.Conversation
	require.NoError(t, parser.DecodeDocument(
		strings.NewReader(testexport.ConversationsDocument(convs...)), &cs,
	))
	return correlate.NewEngine(ps, cs)
}

func toJSON(t *testing.T, v any) gjson.Result {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return gjson.ParseBytes(b)
}

func ids(r gjson.Result) []string {
	var out []string
	r.ForEach(func(_, v gjson.Result) bool {
		out = append(out, v.Get("id").String())
		return true
	})
	return out
}

// sampleEngine covers every export group: two known projects,
// an orphaned project reference, a custom GPT chat, an unlinked
// gizmo and regular chats.
func sampleEngine(t *testing.T) *correlate.Engine {
	t.Helper()
	return newEngine(t,
		[]map[string]any{
			testexport.ProjectJSON("g-p-1", "Health"),
			testexport.ProjectJSON("g-p-2", "Health Research"),
			testexport.ProjectJSON("g-p-3", "Idle"),
		},
		testexport.NewConversation("h1").Gizmo("g-p-1", "").
			Times(100, 200).Mapping(testexport.Linear("hi", "hello")),
		testexport.NewConversation("r1").Gizmo("g-p-2", "").Times(10, 20),
		testexport.NewConversation("h2").Gizmo("g-p-1", "").Times(150, 300),
		testexport.NewConversation("reg1").Times(1, 50),
		testexport.NewConversation("orph").Gizmo("g-p-deadbeef", ""),
		testexport.NewConversation("gpt1").Set("gizmo_type", "gpt").
			Times(1, 10),
		testexport.NewConversation("gpt2").Set("gizmo_type", "gpt").
			Times(1, 40),
		testexport.NewConversation("reg2").Times(1, 70),
		testexport.NewConversation("gz").Gizmo("g-abc", "gpt"),
	)
}
