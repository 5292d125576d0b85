package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/target/oidc-gate/internal/data"
	"github.com/target/oidc-gate/internal/domain/access"
	domainauth "github.com/target/oidc-gate/internal/domain/auth"
	"github.com/target/oidc-gate/internal/domain/model"
)

const defaultCommandTimeout = 30 * time.Second

type postAccessStore interface {
	GetByID(ctx context.Context, id int64) (*model.Post, error)
	GetAccessGroups(ctx context.Context, postID int64) ([]string, error)
	SetAccessGroups(ctx context.Context, postID int64, groups []string) error
}

type userCreator interface {
	Create(ctx context.Context, u *domainauth.NativeUser) (*domainauth.NativeUser, error)
}

func runShowAccess(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("show-access", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	timeout := fs.Duration("timeout", defaultCommandTimeout, "Maximum duration to wait for the database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: show-access [--timeout d] <post-id>")
	}
	id, err := parsePostID(fs.Arg(0))
	if err != nil {
		return err
	}
	return withDatabase(cmdCtx, *timeout, func(ctx context.Context, db *sql.DB) error {
		return showAccess(ctx, os.Stdout, data.NewPostRepo(db), id)
	})
}

func runSetAccess(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("set-access", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	timeout := fs.Duration("timeout", defaultCommandTimeout, "Maximum duration to wait for the database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("usage: set-access [--timeout d] <post-id> <group>[,<group>...]")
	}
	id, err := parsePostID(fs.Arg(0))
	if err != nil {
		return err
	}
	groups := splitGroups(fs.Args()[1:])
	available := access.AvailableGroups(cmdCtx.Config.Auth.AvailableGroups)
	return withDatabase(cmdCtx, *timeout, func(ctx context.Context, db *sql.DB) error {
		if err := setAccess(ctx, data.NewPostRepo(db), available, id, groups); err != nil {
			return err
		}
		cmdCtx.Logger.InfoContext(ctx, "post access updated", "post_id", id, "groups", access.FromList(access.Sanitize(groups)).String())
		return showAccess(ctx, os.Stdout, data.NewPostRepo(db), id)
	})
}

func runCreateUser(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var u domainauth.NativeUser
	fs.BoolVar(&u.SuperAdmin, "admin", false, "Grant super admin rights")
	fs.StringVar(&u.DisplayName, "name", "", "Display name")
	fs.StringVar(&u.Email, "email", "", "Email address")
	timeout := fs.Duration("timeout", defaultCommandTimeout, "Maximum duration to wait for the database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: create-user [--admin] [--name n] [--email e] <login>")
	}
	u.Login = fs.Arg(0)
	return withDatabase(cmdCtx, *timeout, func(ctx context.Context, db *sql.DB) error {
		return createUser(ctx, os.Stdout, data.NewNativeUserRepo(db), &u)
	})
}

func parsePostID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid post id %q", s)
	}
	return id, nil
}

// splitGroups accepts groups as separate arguments, comma lists, or both.
func splitGroups(args []string) []string {
	var out []string
	for _, a := range args {
		for _, g := range strings.Split(a, ",") {
			if g = strings.TrimSpace(g); g != "" {
				out = append(out, g)
			}
		}
	}
	return out
}

func showAccess(ctx context.Context, w io.Writer, store postAccessStore, id int64) error {
	post, err := store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get post %d: %w", id, err)
	}
	groups, err := store.GetAccessGroups(ctx, post.AccessTarget())
	if err != nil {
		return err
	}
	acl := access.FromList(access.Sanitize(groups))
	labels := make([]string, 0, len(acl.List()))
	for _, g := range acl.List() {
		labels = append(labels, access.Label(g))
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "POST\tTYPE\tTITLE\tACCESS"); err != nil {
		return fmt.Errorf("write access header: %w", err)
	}
	if err := writef(tw, "%d\t%s\t%s\t%s\n", post.ID, post.Type, post.Title, strings.Join(labels, ", ")); err != nil {
		return fmt.Errorf("write access row: %w", err)
	}
	return tw.Flush()
}

// setAccess stores a sanitized list. A list that decodes to Everyone is
// stored empty, which makes the post public.
func setAccess(ctx context.Context, store postAccessStore, available []string, id int64, groups []string) error {
	clean := access.Sanitize(groups)
	if len(clean) == 0 {
		return errors.New("at least one group is required; use _everyone_ to make the post public")
	}
	for _, g := range clean {
		if !slices.Contains(available, g) {
			return fmt.Errorf("unknown group %q (available: %s)", g, strings.Join(available, ", "))
		}
	}
	post, err := store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get post %d: %w", id, err)
	}
	if post.Type == model.PostTypeRevision {
		return fmt.Errorf("post %d is a revision; set access on post %d instead", id, post.AccessTarget())
	}
	if access.FromList(clean).IsEveryone() {
		clean = nil
	}
	return store.SetAccessGroups(ctx, id, clean)
}

func createUser(ctx context.Context, w io.Writer, users userCreator, u *domainauth.NativeUser) error {
	created, err := users.Create(ctx, u)
	if errors.Is(err, data.ErrLoginExists) {
		return fmt.Errorf("login %q already exists", u.Login)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	role := "user"
	if created.SuperAdmin {
		role = "super admin"
	}
	return writef(w, "created %s %q (id %d)\n", role, created.Login, created.ID)
}
