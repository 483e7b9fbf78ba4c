package bot

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kyubik/qbitbot/conversation"
	"github.com/kyubik/qbitbot/qbittorrent"
)

const helpText = `Send a magnet link or a .torrent URL to add a torrent.

/info <name> - torrent details
/list [group] - torrent names, group is one of: %s
/files <name> - files of a torrent
/stats - transfer statistics
/pause [name|all] - pause a torrent or all torrents
/resume [name|all] - resume a torrent or all torrents
/del - delete a torrent
/find <expression|preset> - search torrents
/cancel - abort the current dialog`

// dispatch runs a single-shot command and returns its replies.
func (b *Bot) dispatch(ctx context.Context, chatID int64, command, args, firstName string) []conversation.Reply {
	var (
		replies []conversation.Reply
		err     error
	)

	switch command {
	case "start":
		return []conversation.Reply{textReply(fmt.Sprintf("Welcome, %s!", firstName))}
	case "help":
		return []conversation.Reply{textReply(fmt.Sprintf(helpText, strings.Join(qbittorrent.Groups, ", ")))}
	case "info":
		replies, err = b.info(ctx, args)
	case "list":
		replies, err = b.list(ctx, args)
	case "files":
		replies, err = b.files(ctx, args)
	case "stats":
		replies, err = b.stats(ctx)
	case "pause":
		replies, err = b.toggle(ctx, args, true)
	case "resume":
		replies, err = b.toggle(ctx, args, false)
	case "find":
		replies, err = b.find(ctx, args)
	case "del":
		return b.flows.StartDelete(ctx, chatID)
	case "cancel":
		if b.flows.Cancel(chatID) {
			return []conversation.Reply{finalReply("Cancelled")}
		}
		return []conversation.Reply{finalReply("Nothing to cancel")}
	default:
		return []conversation.Reply{textReply(fmt.Sprintf("Unknown command /%s. /help lists the commands.", command))}
	}

	if err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Str("command", command).Msg("Command failed")
		return []conversation.Reply{textReply(conversation.ErrorText(err))}
	}
	return replies
}

func (b *Bot) info(ctx context.Context, name string) ([]conversation.Reply, error) {
	if name == "" {
		return []conversation.Reply{textReply("Usage: /info <torrent name>")}, nil
	}

	info, err := b.torrents.Info(ctx, name)
	if err != nil {
		return nil, err
	}
	return []conversation.Reply{textReply(b.formatter.FormatInfo(info))}, nil
}

// list replies with one message per torrent in group and a summary against
// the size of the "all" group. Both lists are fetched concurrently.
func (b *Bot) list(ctx context.Context, group string) ([]conversation.Reply, error) {
	group = strings.ToLower(group)
	if group == "" {
		group = "all"
	}

	var names []string
	total := -1

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		seq, err := b.torrents.List(gctx, group)
		if err != nil {
			return err
		}
		names = slices.Collect(seq)
		return nil
	})
	if group != "all" {
		g.Go(func() error {
			seq, err := b.torrents.List(gctx, "all")
			if err != nil {
				return err
			}
			total = 0
			for range seq {
				total++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if total < 0 {
		total = len(names)
	}

	replies := make([]conversation.Reply, 0, len(names)+1)
	for _, name := range names {
		replies = append(replies, textReply(name))
	}
	replies = append(replies, textReply(fmt.Sprintf("%s: %d of %d torrents", group, len(names), total)))
	return replies, nil
}

func (b *Bot) files(ctx context.Context, name string) ([]conversation.Reply, error) {
	if name == "" {
		return []conversation.Reply{textReply("Usage: /files <torrent name>")}, nil
	}

	files, err := b.torrents.Contents(ctx, name)
	if err != nil {
		return nil, err
	}

	var replies []conversation.Reply
	for f := range files {
		replies = append(replies, textReply(b.formatter.FormatFile(f)))
	}
	replies = append(replies, textReply(fmt.Sprintf("Total: %d files", len(replies))))
	return replies, nil
}

func (b *Bot) stats(ctx context.Context) ([]conversation.Reply, error) {
	stats, err := b.torrents.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return []conversation.Reply{textReply(b.formatter.FormatStats(stats))}, nil
}

func (b *Bot) toggle(ctx context.Context, name string, pause bool) ([]conversation.Reply, error) {
	action, verb := b.torrents.Resume, "resumed"
	if pause {
		action, verb = b.torrents.Pause, "paused"
	}

	if err := action(ctx, name); err != nil {
		return nil, err
	}

	if qbittorrent.IsAll(name) {
		return []conversation.Reply{textReply("All torrents " + verb)}, nil
	}
	return []conversation.Reply{textReply("Torrent " + verb)}, nil
}

func (b *Bot) find(ctx context.Context, query string) ([]conversation.Reply, error) {
	if query == "" {
		usage := "Usage: /find <expression or preset>"
		if presets := b.finder.Presets(); len(presets) > 0 {
			usage += "\nPresets: " + strings.Join(presets, ", ")
		}
		return []conversation.Reply{textReply(usage)}, nil
	}

	torrents, err := b.torrents.Torrents(ctx)
	if err != nil {
		return nil, err
	}

	matches, err := b.finder.Find(torrents, query)
	if err != nil {
		return []conversation.Reply{textReply(err.Error())}, nil
	}

	replies := make([]conversation.Reply, 0, len(matches)+1)
	for _, t := range matches {
		replies = append(replies, textReply(fmt.Sprintf("%s\n%s, %s", t.Name, t.State, qbittorrent.FormatProgress(t.Progress))))
	}
	replies = append(replies, textReply(fmt.Sprintf("Found %d torrents", len(matches))))
	return replies, nil
}
