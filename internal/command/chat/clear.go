// Package chat registers the Chat module: bulk message cleanup.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"aoi/internal/command"
	"aoi/internal/middleware"
	"aoi/pkg/retrylimit"

	"github.com/bwmarrin/discordgo"
)

const Module = "Chat"

const (
	// Discord refuses to bulk delete messages older than 14 days; stop a day early.
	maxAge    = 13 * 24 * time.Hour
	pageSize  = 100
	batchSize = 100
	cooldown  = 30 * time.Second
)

func init() {
	command.DescribeModule(Module, "Commands to deal with chat")
	command.RegisterCommand(NewClearCommand(),
		middleware.WithCommandLogger(),
		middleware.WithChannelCooldown(cooldown),
		middleware.WithUserPermissionCheck(),
		middleware.WithRulePermissionCheck(),
		middleware.WithGuildOnly(),
	)
}

// ClearCommand deletes the most recent messages of a channel.
type ClearCommand struct {
	Limiter *retrylimit.AdaptiveLimiter
	Retry   retrylimit.RetryConfig
	Now     func() time.Time
	Pause   time.Duration // between history pages and delete batches
}

func NewClearCommand() *ClearCommand {
	retry := retrylimit.DefaultRetryConfig()
	retry.MaxAttempts = 4
	return &ClearCommand{
		Limiter: retrylimit.NewAdaptiveLimiter(2, 0.5, 5, 0.25, 0.5),
		Retry:   retry,
		Now:     time.Now,
		Pause:   time.Second,
	}
}

func (*ClearCommand) Name() string        { return "clear" }
func (*ClearCommand) Module() string      { return Module }
func (*ClearCommand) Description() string { return "Clear messages from a channel" }
func (*ClearCommand) Usage() string       { return "clear <n> [--safe] [--from @member]" }
func (*ClearCommand) Aliases() []string   { return []string{"purge"} }

func (*ClearCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionManageMessages}
}

func (*ClearCommand) Flags() []command.FlagSpec {
	return []command.FlagSpec{
		{Name: "safe", Help: "Ignore pinned messages"},
		{Name: "from", TakesValue: true, Help: "Only messages from a certain member"},
	}
}

type clearJob struct {
	*ClearCommand
	c        *command.Context
	n        int
	safe     bool
	from     string
	progress *discordgo.Message
	hitLimit bool
}

func (cc *ClearCommand) Run(ctx context.Context, c *command.Context) error {
	if len(c.Args) != 1 {
		return command.Usagef("Usage: `%s%s`", c.Prefix, cc.Usage())
	}
	n, err := strconv.Atoi(c.Args[0])
	if err != nil || n < 1 {
		return command.Usagef("`%s` is not a positive number.", c.Args[0])
	}
	if limit := c.Config.ClearMaxMessages; limit > 0 && n > limit {
		return command.Usagef("At most %d messages can be cleared at once.", limit)
	}

	job := &clearJob{ClearCommand: cc, c: c, n: n, safe: c.HasFlag("safe")}
	if c.HasFlag("from") {
		job.from = command.MentionID(c.Flags["from"])
		if _, err := strconv.ParseUint(job.from, 10, 64); err != nil {
			return command.Usagef("`%s` is not a member.", c.Flags["from"])
		}
	}
	return job.run(ctx)
}

func (j *clearJob) run(ctx context.Context) error {
	if j.n > 100 || (j.from != "" && j.n > 50) {
		msg, err := j.c.Messenger.SendEmbed(ctx, j.c.ChannelID(), command.Info("", "Fetching messages..."))
		if err != nil {
			return err
		}
		j.progress = msg
	}

	ids, err := j.collect(ctx)
	if err != nil {
		return err
	}
	if err := j.delete(ctx, ids); err != nil {
		return err
	}

	if j.progress != nil {
		if err := j.call(ctx, func() error {
			return j.c.Messenger.Delete(ctx, j.c.ChannelID(), j.progress.ID)
		}); err != nil {
			j.c.Logger.Warn().Err(err).Msg("failed to delete clear progress message")
		}
	}
	j.c.Logger.Info().Str("channel", j.c.ChannelID()).Int("cleared", len(ids)).Bool("age_limit", j.hitLimit).Msg("channel cleared")
	return j.c.SendOK(ctx, "%s", j.confirmation(len(ids)))
}

// collect walks the channel history newest first until it has n messages,
// runs out of history or reaches the bulk delete age limit.
func (j *clearJob) collect(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		before string
		now    = j.Now()
	)
	skip := map[string]bool{j.c.Message.ID: true}
	if j.progress != nil {
		skip[j.progress.ID] = true
	}

	for len(ids) < j.n && !j.hitLimit {
		var page []*discordgo.Message
		err := j.call(ctx, func() (err error) {
			page, err = j.c.Messenger.FetchHistory(ctx, j.c.ChannelID(), before, min(pageSize, j.n-len(ids)))
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("fetch history: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, m := range page {
			before = m.ID
			if skip[m.ID] {
				continue
			}
			if now.Sub(m.Timestamp) >= maxAge {
				j.hitLimit = true
				break
			}
			if j.safe && m.Pinned {
				continue
			}
			if j.from != "" && (m.Author == nil || m.Author.ID != j.from) {
				continue
			}
			ids = append(ids, m.ID)
			if len(ids) == j.n {
				break
			}
		}

		j.report(ctx, fmt.Sprintf("Fetching messages... %d/%d", len(ids), j.n))
		if len(ids) < j.n && !j.hitLimit {
			if err := j.sleep(ctx); err != nil {
				return nil, err
			}
		}
	}
	return ids, nil
}

func (j *clearJob) delete(ctx context.Context, ids []string) error {
	batches := (len(ids) + batchSize - 1) / batchSize
	for i := 0; i < batches; i++ {
		row := ids[i*batchSize : min((i+1)*batchSize, len(ids))]
		j.report(ctx, fmt.Sprintf("Deleting batch %d/%d", i+1, batches))

		err := j.call(ctx, func() error {
			if len(row) == 1 {
				return j.c.Messenger.Delete(ctx, j.c.ChannelID(), row[0])
			}
			return j.c.Messenger.DeleteMessages(ctx, j.c.ChannelID(), row)
		})
		if err != nil {
			return fmt.Errorf("delete batch %d/%d: %w", i+1, batches, err)
		}
		if i < batches-1 {
			if err := j.sleep(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (j *clearJob) confirmation(cleared int) string {
	s := fmt.Sprintf("Done! Cleared %d", cleared)
	if j.from != "" {
		s += fmt.Sprintf(" from <@%s>", j.from)
	}
	if j.safe {
		s += ", while ignoring pins"
	}
	s += "."
	if j.hitLimit {
		s += " The 14 day limit was hit."
	}
	return s
}

// report edits the progress message, if there is one. Failures only cost
// the user a stale counter.
func (j *clearJob) report(ctx context.Context, text string) {
	if j.progress == nil {
		return
	}
	if err := j.c.Messenger.EditEmbed(ctx, j.c.ChannelID(), j.progress.ID, command.Info("", text)); err != nil {
		j.c.Logger.Debug().Err(err).Msg("failed to update clear progress")
	}
}

func (j *clearJob) sleep(ctx context.Context) error {
	if j.Pause <= 0 {
		return nil
	}
	t := time.NewTimer(j.Pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// call runs a REST request through the limiter. Only rate limits, server
// errors and errors without a status are retried.
func (j *clearJob) call(ctx context.Context, fn func() error) error {
	return retrylimit.WithRetryConfig(ctx, func() error {
		err := fn()
		var sc retrylimit.StatusCoder
		if err != nil && errors.As(err, &sc) && !retrylimit.DefaultClassifier(err) {
			return &retrylimit.FatalError{Err: err}
		}
		return err
	}, j.Limiter, j.Retry)
}
