package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/wesm/projectsview/internal/testexport"
)

type conversationSpec struct {
	gizmoID   string
	gizmoType string
	suffix    string
	msgCount  int
	isoTimes  bool
}

var projects = []struct {
	id   string
	name string
}{
	{"g-p-alpha", "Project Alpha"},
	{"g-p-beta", "Project Beta"},
	{"g-p-gamma", "Gamma Research"},
	{"g-p-empty", "Empty Project"},
}

var specs = []conversationSpec{
	{"g-p-alpha", "", "small-2", 2, false},
	{"g-p-alpha", "", "small-5", 5, true},
	{"g-p-beta", "", "branched-6", 6, false},
	{"g-p-beta", "", "medium-100", 100, false},
	{"g-p-gamma", "", "large-1500", 1500, true},
	{"", "gpt", "custom-gpt-4", 4, false},
	{"", "", "regular-8", 8, false},
	{"", "", "regular-iso-3", 3, true},
	{"g-p-deleted", "", "orphan-2", 2, false},
	{"g-unknown", "", "unlinked-2", 2, false},
}

func main() {
	out := flag.String("out", "", "output directory")
	flag.Parse()
	if *out == "" {
		fmt.Fprintln(os.Stderr, "usage: testfixture -out <dir>")
		os.Exit(1)
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		log.Fatalf("creating output dir: %v", err)
	}

	base := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	projectDocs := make([]map[string]any, 0, len(projects))
	for _, p := range projects {
		projectDocs = append(projectDocs, testexport.ProjectJSON(p.id, p.name))
	}

	convs := make([]*testexport.ConversationBuilder, 0, len(specs))
	for i, spec := range specs {
		convs = append(convs, conversationFixture(spec, i, base))
		fmt.Printf(
			"  test-conversation-%s: %d messages\n",
			spec.suffix, spec.msgCount,
		)
	}

	projectsPath := filepath.Join(*out, "projects.json")
	if err := os.WriteFile(projectsPath,
		[]byte(testexport.ProjectsDocument(projectDocs...)), 0o644,
	); err != nil {
		log.Fatalf("writing projects: %v", err)
	}
	convsPath := filepath.Join(*out, "conversations.json")
	if err := os.WriteFile(convsPath,
		[]byte(testexport.ConversationsDocument(convs...)), 0o644,
	); err != nil {
		log.Fatalf("writing conversations: %v", err)
	}

	fmt.Printf("Fixture archive written to %s\n", *out)
}

func conversationFixture(
	spec conversationSpec, index int, base time.Time,
) *testexport.ConversationBuilder {
	id := "test-conversation-" + spec.suffix
	createdAt := base.Add(time.Duration(index) * 24 * time.Hour)
	updatedAt := createdAt.Add(time.Duration(spec.msgCount) * time.Minute)

	c := testexport.NewConversation(id).
		Set("title", "Fixture "+spec.suffix).
		Set("default_model_slug", "gpt-4o").
		Times(timeValue(createdAt, spec.isoTimes),
			timeValue(updatedAt, spec.isoTimes))
	if spec.gizmoID != "" {
		c.Gizmo(spec.gizmoID, spec.gizmoType)
	} else if spec.gizmoType != "" {
		c.Set("gizmo_type", spec.gizmoType)
	}

	if spec.suffix == "branched-6" {
		return c.Mapping(branchedMapping())
	}
	texts := make([]string, spec.msgCount)
	for i := range spec.msgCount {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		texts[i] = generateContent(role, i, spec.msgCount)
	}
	return c.Mapping(testexport.Linear(texts...))
}

// branchedMapping has one edited user turn: the first answer was
// regenerated, so the tree forks under n1.
func branchedMapping() *testexport.MappingBuilder {
	return testexport.NewMappingBuilder("root").
		Add("n1", "root", "system", "").
		Add("n2", "n1", "user", "Help me read a file").
		Add("n3", "n2", "assistant", "Here is my first analysis.").
		Add("n4", "n2", "assistant", "Here is my regenerated analysis.").
		Add("n5", "n4", "user", "Now check the directory").
		Add("n6", "n5", "assistant", "The directory holds main.go.")
}

func timeValue(t time.Time, iso bool) any {
	if iso {
		return t.Format(time.RFC3339Nano)
	}
	return float64(t.UnixMilli()) / 1000
}

func generateContent(role string, idx, total int) string {
	if role == "user" {
		return fmt.Sprintf(
			"User message %d of %d. "+
				"Please help me with this task. "+
				"I need to understand how the code works.",
			idx, total,
		)
	}
	return fmt.Sprintf(
		"Assistant response %d of %d. "+
			"Here is my analysis of the code. "+
			"The implementation follows standard patterns "+
			"and uses well-known libraries. "+
			"Let me explain the key components.",
		idx, total,
	)
}
