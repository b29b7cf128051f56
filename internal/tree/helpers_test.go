package tree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"proxytree/internal/extgraph"
	"proxytree/internal/extract"
	"proxytree/internal/storage"
)

const greetSrc = `func Greet(name string) string { return "hello " + name }`

const doubleSrc = `func Double(n int) int { return n * 2 }`

const loggerSrc = `
type Logger struct{}

func NewLogger() *Logger { return &Logger{} }

func (l *Logger) Level() string { return "info" }
`

const formatterSrc = `
func Format(msg string) string { return "[log] " + msg }
`

const serviceSrc = `
type Service struct{}

func NewService() *Service { return &Service{} }

func (s *Service) Ping() string { return "pong" }
`

type fixture struct {
	graph *extgraph.MemGraph
	store *storage.MemoryAdapter
	root  *Container
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	g := extgraph.NewMemGraph()
	st := storage.NewMemoryAdapter()
	root, err := NewRoot(Deps{
		Graph:     g,
		Extractor: extract.NewInterpreter(g),
		Store:     st,
	})
	require.NoError(t, err)
	return &fixture{graph: g, store: st, root: root}
}

// reopen builds a fresh root over the fixture's store and graph, as a
// process restart would.
func (f *fixture) reopen(t *testing.T) *Container {
	t.Helper()
	root, err := NewRoot(Deps{
		Graph:     f.graph,
		Extractor: extract.NewInterpreter(f.graph),
		Store:     f.store,
	})
	require.NoError(t, err)
	return root
}

func (f *fixture) put(locator, text string) {
	f.graph.Put(locator, text)
}
