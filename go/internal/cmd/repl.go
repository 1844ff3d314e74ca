package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/session"
)

// Room is the part of the session controller the command loop drives.
type Room interface {
	View() session.View
	CreateIssue(ctx context.Context, title string) (*models.Issue, error)
	DeleteIssue(ctx context.Context, issueID int64) error
	ActivateIssue(ctx context.Context, issueID int64) error
	CastVote(ctx context.Context, value string) error
	RevealVotes(ctx context.Context) error
	ResetVoting(ctx context.Context) error
	SetFinalVote(ctx context.Context, value string) error
	ClearSession(ctx context.Context) error
	UpdateProfile(ctx context.Context, p models.Participant) error
}

// Profile persists the local participant.
type Profile interface {
	SetName(name string) (models.Participant, error)
	SetSpectator(spectator bool) models.Participant
}

const helpText = `commands:
  add <title>      add an issue
  rm <id>          delete an issue and its votes
  start <id>       start voting on an issue
  vote <card>      vote on the active issue
  reveal           reveal votes
  reset            discard votes and vote again
  final <value>    record the final estimate
  name <name>      change your display name
  spectate | play  switch role
  clear            delete every issue in the room
  summary          list finalized issues
  show             print the room
  quit`

type repl struct {
	room    Room
	profile Profile

	mu  sync.Mutex
	out io.Writer
}

func newREPL(room Room, profile Profile, out io.Writer) *repl {
	return &repl{room: room, profile: profile, out: out}
}

// Watch prints the room whenever it changes and any notices.
func (r *repl) Watch(ctx context.Context, updates <-chan session.View, notices <-chan session.Notice) {
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-updates:
			r.print(renderView(v))
		case n := <-notices:
			r.print(renderNotice(n))
		}
	}
}

// Run reads commands from in until quit, EOF or ctx is done.
func (r *repl) Run(ctx context.Context, in io.Reader) {
	r.print(helpText)
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := r.exec(ctx, line); quit {
				return
			}
		}
	}
}

// exec runs one command line and reports whether the loop should stop.
func (r *repl) exec(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	cmd, arg = strings.ToLower(cmd), strings.TrimSpace(arg)

	var err error
	switch cmd {
	case "":
		return false
	case "quit", "exit":
		return true
	case "help", "?":
		r.print(helpText)
	case "show":
		r.print(renderView(r.room.View()))
	case "summary":
		r.print(renderSummary(r.room.View()))
	case "add":
		_, err = r.room.CreateIssue(ctx, arg)
	case "rm":
		err = r.withID(arg, func(id int64) error { return r.room.DeleteIssue(ctx, id) })
	case "start":
		err = r.withID(arg, func(id int64) error { return r.room.ActivateIssue(ctx, id) })
	case "vote":
		err = r.room.CastVote(ctx, arg)
	case "reveal":
		err = r.room.RevealVotes(ctx)
	case "reset":
		err = r.room.ResetVoting(ctx)
	case "final":
		err = r.room.SetFinalVote(ctx, arg)
	case "clear":
		err = r.room.ClearSession(ctx)
	case "name":
		var p models.Participant
		if p, err = r.profile.SetName(arg); err == nil {
			err = r.room.UpdateProfile(ctx, p)
		}
	case "spectate", "play":
		err = r.room.UpdateProfile(ctx, r.profile.SetSpectator(cmd == "spectate"))
	default:
		err = fmt.Errorf("unknown command %q, try help", cmd)
	}

	if err != nil {
		r.print("error: " + describeError(err))
	}
	return false
}

func (r *repl) withID(arg string, fn func(id int64) error) error {
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil || id <= 0 {
		return models.NewValidationError("issue id", "must be a positive number")
	}
	return fn(id)
}

func (r *repl) print(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, s)
}

func describeError(err error) string {
	switch {
	case models.IsValidation(err):
		return err.Error()
	case models.IsRepository(err):
		return "the room could not be updated, check your connection (" + err.Error() + ")"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return err.Error()
	}
}
