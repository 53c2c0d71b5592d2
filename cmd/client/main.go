package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/heist-sync/internal/channel"
	"github.com/DoyleJ11/heist-sync/internal/client"
	"github.com/DoyleJ11/heist-sync/internal/command"
	"github.com/DoyleJ11/heist-sync/internal/config"
	"github.com/DoyleJ11/heist-sync/internal/identity"
	"github.com/DoyleJ11/heist-sync/internal/logging"
	"github.com/DoyleJ11/heist-sync/pkg/types"
)

const help = `commands:
  start                 start the next heist
  restart               reset vaults and alarms (asks first)
  name <name>           change your name
  take <n> [player-id]  take chip n from the bank or from a player
  return                put your chip back
  settle                toggle settled
  remove <player-id>    remove a disconnected player (asks first)
  quit`

func main() {
	dotenvErr := config.LoadDotenv()
	cfg := config.LoadClient()

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer log.Sync()
	if dotenvErr != nil {
		log.Debug("no .env loaded", zap.Error(dotenvErr))
	}

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("client stopped", zap.Error(err))
	}
}

func run(cfg config.Client, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openIdentity(cfg)
	if err != nil {
		return err
	}
	defer closeBackend()
	ids := identity.NewStore(backend)

	target, err := tableURL(cfg.ServerURL, cfg.Table)
	if err != nil {
		return err
	}
	ch := channel.Dial(ctx, target,
		channel.WithLogger(log),
		channel.WithRetryInterval(cfg.RetryInitial, cfg.RetryMax))
	defer ch.Close()

	out := newLineRenderer(os.Stdout)
	sess := client.NewSession(ch, ids, out, client.WithLogger(log))
	sender := command.NewSender(ch, log)

	out.Println(help)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sess.Run(ctx) })
	g.Go(func() error { return readCommands(ctx, os.Stdin, sender, sess, out) })
	return g.Wait()
}

func openIdentity(cfg config.Client) (identity.Backend, func(), error) {
	if cfg.IdentityDSN != "" {
		b, err := identity.OpenSQL(cfg.IdentityDSN, cfg.Profile)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil
	}
	return identity.NewFileBackend(cfg.IdentityFile, cfg.Profile), func() {}, nil
}

func tableURL(base, table string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("bad server url: %w", err)
	}
	if table != "" {
		q := u.Query()
		q.Set("code", table)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// readCommands turns stdin lines into intents. It returns context.Canceled
// on "quit" so the errgroup tears everything down.
func readCommands(ctx context.Context, in io.Reader, sender *command.Sender, sess *client.Session, out *lineRenderer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	var pending *command.Pending
	for {
		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				return context.Canceled
			}
			line = strings.TrimSpace(l)
		}

		if pending != nil {
			if strings.EqualFold(line, "y") || strings.EqualFold(line, "yes") {
				pending.Confirm(ctx)
			} else {
				pending.Cancel()
				out.Println("cancelled")
			}
			pending = nil
			continue
		}

		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch cmd {
		case "":
		case "start":
			sender.StartGame(ctx)
		case "restart":
			pending = sender.RequestRestart()
		case "name":
			sender.ChangeName(ctx, arg)
		case "take":
			value, from, _ := strings.Cut(arg, " ")
			n, err := strconv.Atoi(value)
			if err != nil {
				out.Println("usage: take <n> [player-id]")
				continue
			}
			src := types.Center()
			if from = strings.TrimSpace(from); from != "" {
				src = types.FromPlayer(types.PlayerID(from))
			}
			sender.TakeChip(ctx, n, src)
		case "return":
			sender.ReturnChip(ctx)
		case "settle":
			sender.ToggleSettle(ctx)
		case "remove":
			pending = sender.RequestRemove(types.PlayerID(arg), playerName(sess, types.PlayerID(arg)))
		case "quit", "exit":
			return context.Canceled
		default:
			out.Println(help)
		}
		if pending != nil {
			out.Println(pending.Prompt() + " [y/N]")
		}
	}
}

func playerName(sess *client.Session, id types.PlayerID) string {
	snap := sess.Latest()
	if snap == nil {
		return ""
	}
	p, ok := snap.Player(id)
	if !ok {
		return ""
	}
	return p.Name
}
