// Command adduser creates a budget tracker login and optionally seeds the
// expense categories the new user starts with.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"budget-tracker/internal/auth"
	"budget-tracker/internal/budget"
	"budget-tracker/internal/storage"

	"golang.org/x/term"
)

const defaultDBPath = "budgets.db"

const usage = "Usage: adduser -user <username> [-password <password>] [-categories <name,name,...>] [-driver sqlite|postgres] [-db <db_path>]"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the parsed command line, with the environment applied.
type options struct {
	username   string
	password   string
	categories []string
	driver     string
	dbPath     string
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stdout, stderr)
	if err != nil {
		return err
	}

	if opts.password == "" {
		fmt.Fprint(stdout, "Password: ")
		opts.password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(opts.password) == "" {
		return fmt.Errorf("password cannot be empty")
	}

	store, err := storage.Open(opts.driver, opts.dbPath, os.Getenv("DATABASE_URL"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	if existing, err := store.GetUserByUsername(opts.username); err == nil && existing != nil {
		return fmt.Errorf("user %s already exists", opts.username)
	}

	hash, err := auth.HashPassword(opts.password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user, err := store.CreateUser(opts.username, hash)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	fmt.Fprintf(stdout, "User %s created successfully with ID %d\n", user.Username, user.ID)

	resolver := budget.NewCategoryResolver(store)
	for _, name := range opts.categories {
		c, err := resolver.ResolveOrCreate(context.Background(), user.ID, name)
		if err != nil {
			return fmt.Errorf("failed to seed category %q: %w", name, err)
		}
		fmt.Fprintf(stdout, "Category %s ready with ID %d\n", c.Name, c.ID)
	}
	return nil
}

func parseFlags(args []string, stdout, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	username := fs.String("user", "", "Login name of the budget owner")
	password := fs.String("password", "", "Password (optional, will prompt if omitted)")
	categories := fs.String("categories", "", "Comma separated expense categories to create for the user")
	driver := fs.String("driver", "sqlite", "Database driver: sqlite or postgres")
	dbPath := fs.String("db", defaultDBPath, "Path to the sqlite budget database")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *username == "" {
		fmt.Fprintln(stdout, usage)
		fs.PrintDefaults()
		return nil, fmt.Errorf("missing required flags: user")
	}

	// DB_DRIVER and DB_PATH apply only to flags left unset.
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if d := os.Getenv("DB_DRIVER"); d != "" && !set["driver"] {
		*driver = d
	}
	if p := os.Getenv("DB_PATH"); p != "" && !set["db"] {
		*dbPath = p
	}

	return &options{
		username:   *username,
		password:   *password,
		categories: splitCategories(*categories),
		driver:     *driver,
		dbPath:     *dbPath,
	}, nil
}

// splitCategories trims each name and drops empty ones and repeats.
func splitCategories(list string) []string {
	var names []string
	seen := map[string]bool{}
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// Pipes and tests
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
