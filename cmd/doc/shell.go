package doc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/roberthgnz/lsdb/cmd/util"
	"github.com/roberthgnz/lsdb/lib/docdb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive shell for the database",
	Long:  "Interactive shell for the database. Type help for a list of commands.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShell(newShell(database, os.Stdout, viper.GetBool("strict")))
	},
}

// errExit ends the shell loop
var errExit = errors.New("exit")

const shellHelp = `commands:
  collections                        list the declared collections
  declare [-r] NAME... | [NAMES]     declare collections (-r empties existing ones)
  count COLL                         number of documents
  find COLL [WHERE [OPTIONS]]        matching documents, OPTIONS like {"sort": {"field": "age", "order": "desc"}, "skip": 1, "limit": 10}
  findone COLL WHERE                 first matching document
  insert COLL DOC                    insert a document
  insertmany COLL [DOC, ...]         insert several documents
  update COLL MATCH PATCH            merge PATCH into the first document matching MATCH
  remove COLL WHERE                  remove matching documents
  all COLL                           all documents
  dump                               the whole database
  strict on|off                      equality instead of substring matching for $in and $nin
  help                               this text
  exit                               leave the shell`

var shellCommands = []string{
	"collections", "declare", "count", "find", "findone", "insert", "insertmany",
	"update", "remove", "all", "dump", "strict", "help", "exit", "quit",
}

// shell executes shell lines against a database
type shell struct {
	db     docdb.IDatabase
	out    io.Writer
	strict bool
}

func newShell(db docdb.IDatabase, out io.Writer, strict bool) *shell {
	return &shell{db: db, out: out, strict: strict}
}

// runShell reads lines with history and completion until exit or EOF
func runShell(s *shell) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(input string) []string {
		var matches []string
		for _, c := range shellCommands {
			if strings.HasPrefix(c, strings.ToLower(input)) {
				matches = append(matches, c)
			}
		}
		return matches
	})

	historyPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyPath = filepath.Join(home, ".lsdb_history")
		if f, err := os.Open(historyPath); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}

	fmt.Fprintf(s.out, "connected to database %q, type help for a list of commands\n", s.db.Name())

	for {
		input, err := line.Prompt(s.db.Name() + "> ")
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			// io.EOF on ctrl-d
			break
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		if err := s.exec(input); errors.Is(err, errExit) {
			break
		} else if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}

	if historyPath != "" {
		if f, err := os.Create(historyPath); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}
	return nil
}

// exec runs one shell line
func (s *shell) exec(input string) error {
	name, rest := splitWord(strings.TrimSpace(input))

	switch strings.ToLower(name) {
	case "help":
		fmt.Fprintln(s.out, shellHelp)
		return nil
	case "exit", "quit":
		return errExit
	case "dump":
		snapshot, err := s.db.Snapshot()
		if err != nil {
			return err
		}
		return s.print(snapshot)
	case "collections":
		snapshot, err := s.db.Snapshot()
		if err != nil {
			return err
		}
		names := make([]string, 0, len(snapshot))
		for name := range snapshot {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(s.out, "%s (%d)\n", name, len(snapshot[name]))
		}
		return nil
	case "strict":
		switch rest {
		case "on":
			s.strict = true
		case "off":
			s.strict = false
		default:
			return fmt.Errorf("usage: strict on|off")
		}
		fmt.Fprintf(s.out, "strict=%t\n", s.strict)
		return nil
	case "declare":
		return s.declare(rest)
	}

	if !isShellCommand(name) {
		return fmt.Errorf("unknown command %q, type help for a list of commands", name)
	}
	coll, rest := splitWord(rest)
	if coll == "" {
		return fmt.Errorf("%s requires a collection", name)
	}
	args, err := splitJSONValues(rest)
	if err != nil {
		return err
	}

	switch strings.ToLower(name) {
	case "count":
		n, err := s.db.Count(coll)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, n)
		return nil

	case "find":
		opts := docdb.FindOptions{}
		if len(args) > 0 {
			if opts.Where, err = util.ParseWhereArg(args[0], s.strict); err != nil {
				return err
			}
		}
		if len(args) > 1 {
			var extra docdb.FindOptions
			if err := json.Unmarshal([]byte(args[1]), &extra); err != nil {
				return fmt.Errorf("invalid options %s: %w", args[1], err)
			}
			opts.Sort, opts.Skip, opts.Limit = extra.Sort, extra.Skip, extra.Limit
		}
		docs, err := s.db.Find(coll, opts)
		if err != nil {
			return err
		}
		return s.print(docs)

	case "findone":
		where, err := s.whereArg(args)
		if err != nil {
			return err
		}
		doc, found, err := s.db.FindOne(coll, where)
		if err != nil {
			return err
		}
		if !found {
			fmt.Fprintln(s.out, "null")
			return nil
		}
		return s.print(doc)

	case "insert":
		if len(args) != 1 {
			return fmt.Errorf("usage: insert COLL DOC")
		}
		doc, err := util.ParseDocumentArg(args[0])
		if err != nil {
			return err
		}
		stored, err := s.db.Insert(coll, doc)
		if err != nil {
			return err
		}
		return s.print(stored)

	case "insertmany":
		if len(args) != 1 {
			return fmt.Errorf("usage: insertmany COLL [DOC, ...]")
		}
		docs, err := util.ParseDocumentsArg(args[0])
		if err != nil {
			return err
		}
		stored, err := s.db.InsertMany(coll, docs)
		if err != nil {
			return err
		}
		return s.print(stored)

	case "update":
		if len(args) != 2 {
			return fmt.Errorf("usage: update COLL MATCH PATCH")
		}
		m, err := util.ParseMatchArg(args[0])
		if err != nil {
			return err
		}
		patch, err := util.ParseDocumentArg(args[1])
		if err != nil {
			return err
		}
		before, found, err := s.db.Update(coll, m, patch)
		if err != nil {
			return err
		}
		if !found {
			fmt.Fprintln(s.out, "null")
			return nil
		}
		return s.print(before)

	case "remove":
		where, err := s.whereArg(args)
		if err != nil {
			return err
		}
		removed, err := s.db.Remove(coll, where)
		if err != nil {
			return err
		}
		return s.print(removed)

	case "all":
		docs, err := s.db.All(coll)
		if err != nil {
			return err
		}
		return s.print(docs)
	}

	return fmt.Errorf("unknown command %q, type help for a list of commands", name)
}

func (s *shell) declare(rest string) error {
	replace := false
	if flag, after := splitWord(rest); flag == "-r" {
		replace, rest = true, after
	}
	if rest == "" {
		return fmt.Errorf("usage: declare [-r] NAME... | [NAMES]")
	}

	var args []string
	if strings.HasPrefix(rest, "[") {
		args = []string{rest}
	} else {
		args = strings.Fields(rest)
	}
	names, err := util.ParseNamesArg(args)
	if err != nil {
		return err
	}
	if err := s.db.DeclareCollections(names, replace); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "ok")
	return nil
}

func (s *shell) whereArg(args []string) (docdb.Where, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("a single filter is required")
	}
	return util.ParseWhereArg(args[0], s.strict)
}

func (s *shell) print(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(s.out, string(data))
	return err
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func isShellCommand(name string) bool {
	for _, c := range shellCommands {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// splitWord returns the first whitespace separated word of s and the trimmed remainder
func splitWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

// splitJSONValues splits a sequence of whitespace separated JSON values.
// Each value may use HuJSON syntax on its own, the values are returned as standard JSON.
func splitJSONValues(s string) ([]string, error) {
	var values []string
	for {
		var err error
		if s, err = skipComments(s); err != nil {
			return nil, err
		}
		if s == "" {
			return values, nil
		}
		end, err := valueEnd(s)
		if err != nil {
			return nil, err
		}
		data, err := util.StandardizeJSON(s[:end])
		if err != nil {
			return nil, err
		}
		values = append(values, string(bytes.TrimSpace(data)))
		s = s[end:]
	}
}

// valueEnd finds the end of the JSON object or array at the start of s by bracket counting,
// skipping strings and comments. Scalars end at the next whitespace.
func valueEnd(s string) (int, error) {
	if s[0] != '{' && s[0] != '[' {
		if i := strings.IndexAny(s, " \t"); i >= 0 {
			return i, nil
		}
		return len(s), nil
	}

	depth, inString, escaped := 0, false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '/':
			end := commentEnd(s[i:])
			if end < 0 {
				return 0, fmt.Errorf("unterminated comment in JSON value: %s", s)
			}
			i += end - 1
		case c == '{' || c == '[':
			depth++
		case c == '}' || c == ']':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
	}
	return 0, fmt.Errorf("unterminated JSON value: %s", s)
}

// commentEnd returns the length of the // or /* */ comment at the start of s, 1 if s does not
// start a comment and -1 for an unterminated block comment. Line comments end before the newline.
func commentEnd(s string) int {
	switch {
	case strings.HasPrefix(s, "//"):
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			return i
		}
		return len(s)
	case strings.HasPrefix(s, "/*"):
		if i := strings.Index(s[2:], "*/"); i >= 0 {
			return i + 4
		}
		return -1
	}
	return 1
}

// skipComments drops leading whitespace and comments
func skipComments(s string) (string, error) {
	for s = strings.TrimSpace(s); strings.HasPrefix(s, "//") || strings.HasPrefix(s, "/*"); s = strings.TrimSpace(s) {
		end := commentEnd(s)
		if end < 0 {
			return "", fmt.Errorf("unterminated comment: %s", s)
		}
		s = s[end:]
	}
	return s, nil
}
