package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"proxytree/internal/config"
	"proxytree/internal/extgraph"
	"proxytree/internal/extract"
	"proxytree/internal/logging"
	"proxytree/internal/storage"
	"proxytree/internal/tree"
)

var (
	configPath string
	graphPath  string
	debug      bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "proxytree",
	Short: "Proxy tree and reconciliation engine",
	Long: `proxytree maintains a hierarchical namespace mirroring a live external
object graph. It persists lightweight metadata only, re-resolves every
external reference on refresh, and supports dynamically attached
extensions at any depth.

The external graph is loaded from a YAML fixture mapping locators to
source payloads (--graph).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(debug)
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [path]",
	Short: "Print a node's metadata snapshot as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, _ := cmd.Flags().GetStringSlice("keys")
		eng, err := buildEngine()
		if err != nil {
			return err
		}
		defer eng.close()

		target := ""
		if len(args) == 1 {
			target = args[0]
		}
		node, err := resolveNode(eng.root, target)
		if err != nil {
			return err
		}
		out, err := inspectNode(node, keys)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Render the tree as an indented listing",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine()
		if err != nil {
			return err
		}
		defer eng.close()

		c := eng.root
		if len(args) == 1 {
			c, err = resolveContainer(eng.root, args[0])
			if err != nil {
				return err
			}
		}
		fmt.Print(c.Tree())
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh [path]",
	Short: "Reconcile the tree against the external graph",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine()
		if err != nil {
			return err
		}
		defer eng.close()

		c := eng.root
		if len(args) == 1 {
			c, err = resolveContainer(eng.root, args[0])
			if err != nil {
				return err
			}
		}
		if err := c.Refresh(); err != nil {
			return err
		}
		fmt.Print(eng.root.Tree())
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <name> <target>...",
	Short: "Bind graph targets under a child container",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, _ := cmd.Flags().GetString("in")
		eng, err := buildEngine()
		if err != nil {
			return err
		}
		defer eng.close()

		parent, err := resolveContainer(eng.root, in)
		if err != nil {
			return err
		}
		child, err := parent.AddNode(args[0], args[1:]...)
		if err != nil {
			return err
		}
		out, err := child.InspectJSON()
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var extendCmd = &cobra.Command{
	Use:   "extend <name> <source>",
	Short: "Attach behavior extracted from a graph source",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, _ := cmd.Flags().GetString("in")
		class, _ := cmd.Flags().GetString("class")
		fn, _ := cmd.Flags().GetString("func")
		call, _ := cmd.Flags().GetBool("call")
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		eng, err := buildEngine()
		if err != nil {
			return err
		}
		defer eng.close()

		parent, err := resolveContainer(eng.root, in)
		if err != nil {
			return err
		}
		node, err := parent.ExtendNode(args[0], tree.Spec{ClassName: class, FuncName: fn}, args[1],
			&tree.ExtendOptions{InvokeOnLoad: call, AllowOverwrite: overwrite})
		if err != nil {
			return err
		}
		out, err := inspectNode(node, nil)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <name>...",
	Short: "Remove named children, leaves, or extensions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, _ := cmd.Flags().GetString("in")
		eng, err := buildEngine()
		if err != nil {
			return err
		}
		defer eng.close()

		parent, err := resolveContainer(eng.root, in)
		if err != nil {
			return err
		}
		if err := parent.Remove(args...); err != nil {
			return err
		}
		fmt.Print(eng.root.Tree())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "proxytree.yaml", "config file")
	rootCmd.PersistentFlags().StringVarP(&graphPath, "graph", "g", "graph.yaml", "external graph fixture")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "debug logging")

	inspectCmd.Flags().StringSlice("keys", nil, "restrict output to these top-level keys")
	addCmd.Flags().String("in", "", "parent container path")
	extendCmd.Flags().String("in", "", "holder container path")
	extendCmd.Flags().String("class", "", "class symbol to extract")
	extendCmd.Flags().String("func", "", "function symbol to extract")
	extendCmd.Flags().Bool("call", false, "invoke the behavior immediately")
	extendCmd.Flags().Bool("overwrite", false, "replace an existing extension or patch a container")
	removeCmd.Flags().String("in", "", "parent container path")

	rootCmd.AddCommand(inspectCmd, treeCmd, refreshCmd, addCmd, extendCmd, removeCmd)
}

type engine struct {
	root  *tree.Container
	store storage.Adapter
}

func (e *engine) close() {
	if c, ok := e.store.(*storage.SQLiteAdapter); ok {
		_ = c.Close()
	}
}

func buildEngine() (*engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	graph, err := loadGraph(graphPath)
	if err != nil {
		return nil, err
	}

	var store storage.Adapter
	switch cfg.Store.Driver {
	case "memory":
		store = storage.NewMemoryAdapter()
	case "file":
		store, err = storage.NewFileAdapter(cfg.Store.Path)
	case "sqlite":
		store, err = storage.NewSQLiteAdapter(cfg.Store.Path, cfg.Store.History)
	}
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	root, err := tree.NewRoot(tree.Deps{
		Graph:             graph,
		Extractor:         extract.NewInterpreter(graph),
		Store:             store,
		Log:               logger,
		MaxExtensionDepth: cfg.Tree.MaxExtensionDepth,
	})
	if err != nil {
		return nil, err
	}
	return &engine{root: root, store: store}, nil
}

// graphFixture is the YAML shape of the external graph fixture: locators
// mapped to source payloads.
type graphFixture struct {
	Objects map[string]string `yaml:"objects"`
}

func loadGraph(path string) (*extgraph.MemGraph, error) {
	g := extgraph.NewMemGraph()
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return g, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading graph fixture %s: %w", path, err)
	}
	var fix graphFixture
	if err := yaml.Unmarshal(raw, &fix); err != nil {
		return nil, fmt.Errorf("parsing graph fixture %s: %w", path, err)
	}
	for locator, text := range fix.Objects {
		g.Put(locator, text)
	}
	return g, nil
}

// resolveContainer walks a dot path to a container.
func resolveContainer(root *tree.Container, path string) (*tree.Container, error) {
	if path == "" {
		return root, nil
	}
	cur := root
	for _, seg := range strings.Split(path, ".") {
		next, ok := cur.Child(seg)
		if !ok {
			return nil, fmt.Errorf("no container at %q (segment %q)", path, seg)
		}
		cur = next
	}
	return cur, nil
}

// resolveNode walks a dot path through the merged namespace to any node.
func resolveNode(root *tree.Container, path string) (tree.Node, error) {
	if path == "" {
		return root, nil
	}
	var cur tree.Node = root
	for _, seg := range strings.Split(path, ".") {
		switch n := cur.(type) {
		case *tree.Container:
			next, ok := n.Get(seg)
			if !ok {
				return nil, fmt.Errorf("nothing at %q (segment %q)", path, seg)
			}
			cur = next
		case *tree.Leaf:
			next, ok := n.Ext(seg)
			if !ok {
				return nil, fmt.Errorf("nothing at %q (segment %q)", path, seg)
			}
			cur = next
		case *tree.Extension:
			next, ok := n.Ext(seg)
			if !ok {
				return nil, fmt.Errorf("nothing at %q (segment %q)", path, seg)
			}
			cur = next
		default:
			return nil, fmt.Errorf("cannot descend into %q", seg)
		}
	}
	return cur, nil
}

func inspectNode(n tree.Node, keys []string) (string, error) {
	switch v := n.(type) {
	case *tree.Container:
		return v.InspectJSON(keys...)
	case *tree.Leaf:
		return v.InspectJSON(keys...)
	case *tree.Extension:
		return v.InspectJSON(keys...)
	default:
		return "", fmt.Errorf("node %q is not inspectable", n.Path())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
