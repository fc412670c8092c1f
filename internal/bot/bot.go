package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"coinpulse/internal/market"
	"coinpulse/internal/models"
	"coinpulse/internal/narrative"
	"coinpulse/internal/scheduler"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
)

// Sender is the part of tgbotapi.BotAPI the handlers need.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type QuoteService interface {
	FetchQuote(ctx context.Context, asset string) (market.Result, error)
}

type NarrativeService interface {
	Fetch(ctx context.Context, req narrative.Request) (models.Narrative, error)
}

// chatView is one chat's live dashboard message.
type chatView struct {
	view      *scheduler.View
	messageID int
}

type Bot struct {
	api        *tgbotapi.BotAPI
	sender     Sender
	quotes     QuoteService
	narratives NarrativeService
	interval   time.Duration
	logger     *slog.Logger

	// watchMu serialises /watch, /unwatch and Close so a view is never
	// mounted after it has left the map.
	watchMu sync.Mutex
	mu      sync.Mutex // guards views and their message IDs
	views   map[int64]*chatView

	handlers sync.WaitGroup
}

func New(token string, debug bool, quotes QuoteService, narratives NarrativeService, interval time.Duration, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = debug

	b := newBot(api, quotes, narratives, interval, logger)
	b.api = api
	return b, nil
}

func newBot(sender Sender, quotes QuoteService, narratives NarrativeService, interval time.Duration, logger *slog.Logger) *Bot {
	if interval <= 0 {
		interval = scheduler.DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		sender:     sender,
		quotes:     quotes,
		narratives: narratives,
		interval:   interval,
		logger:     logger,
		views:      make(map[int64]*chatView),
	}
}

// Run polls Telegram until ctx is cancelled, then tears down every view.
func (b *Bot) Run(ctx context.Context) error {
	if b.api == nil {
		return errors.New("bot: no telegram API configured")
	}
	b.logger.Info("authorized", "account", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.handlers.Wait()
			b.Close()
			return nil
		case update, ok := <-updates:
			if !ok {
				b.handlers.Wait()
				b.Close()
				return nil
			}
			b.handlers.Add(1)
			go func(update tgbotapi.Update) {
				defer b.handlers.Done()
				b.handleUpdate(ctx, update)
			}(update)
		}
	}
}

// Close unmounts every chat view.
func (b *Bot) Close() {
	b.watchMu.Lock()
	defer b.watchMu.Unlock()

	b.mu.Lock()
	views := b.views
	b.views = make(map[int64]*chatView)
	b.mu.Unlock()

	for _, cv := range views {
		cv.view.Unmount()
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.Chat == nil {
		return
	}
	chatID := update.Message.Chat.ID
	args := strings.TrimSpace(update.Message.CommandArguments())

	switch update.Message.Command() {
	case "start", "help":
		b.reply(chatID, helpText())
	case "assets":
		b.reply(chatID, "Supported assets: "+strings.Join(models.AssetKeys(), ", "))
	case "price":
		b.handlePrice(ctx, chatID, args)
	case "prices":
		b.handlePrices(ctx, chatID)
	case "analysis":
		b.handleAnalysis(ctx, chatID, args)
	case "watch":
		b.handleWatch(ctx, chatID, args)
	case "unwatch":
		b.handleUnwatch(chatID)
	}
}

func (b *Bot) reply(chatID int64, text string) (tgbotapi.Message, error) {
	msg, err := b.sender.Send(tgbotapi.NewMessage(chatID, truncate(text)))
	if err != nil {
		b.logger.Warn("send failed", "chat", chatID, "error", err)
	}
	return msg, err
}

func (b *Bot) handlePrice(ctx context.Context, chatID int64, arg string) {
	asset, ok := resolveAsset(arg)
	if !ok {
		b.reply(chatID, unknownAssetText(arg))
		return
	}

	res, err := b.quotes.FetchQuote(ctx, asset)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Data unavailable: %v", err))
		return
	}
	b.reply(chatID, formatQuote(res))
}

func (b *Bot) handlePrices(ctx context.Context, chatID int64) {
	keys := models.AssetKeys()
	results := make([]market.Result, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	for i, asset := range keys {
		i, asset := i, asset
		g.Go(func() error {
			res, err := b.quotes.FetchQuote(gctx, asset)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		b.reply(chatID, fmt.Sprintf("Data unavailable: %v", err))
		return
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Quote.MarketCap > results[j].Quote.MarketCap
	})
	b.reply(chatID, formatOverview(results, time.Now()))
}

func (b *Bot) handleAnalysis(ctx context.Context, chatID int64, arg string) {
	asset, ok := resolveAsset(arg)
	if !ok {
		b.reply(chatID, unknownAssetText(arg))
		return
	}

	res, err := b.quotes.FetchQuote(ctx, asset)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Data unavailable: %v", err))
		return
	}

	q := res.Quote
	b.reply(chatID, fmt.Sprintf("🔎 Generating %s analysis, this can take a minute...", q.Name))

	n, err := b.narratives.Fetch(ctx, narrative.Request{
		Name:      q.Name,
		Symbol:    q.Symbol,
		Price:     q.Price,
		ChangePct: q.ChangePct24h,
		MarketCap: q.MarketCap,
		Volume:    q.Volume24h,
	})
	if err != nil {
		b.logger.Warn("analysis failed", "chat", chatID, "asset", asset, "error", err)
		b.reply(chatID, formatNarrativeError(asset, err))
		return
	}
	b.reply(chatID, formatNarrative(q, res, n))
}

func (b *Bot) handleWatch(ctx context.Context, chatID int64, arg string) {
	asset, ok := resolveAsset(arg)
	if !ok {
		b.reply(chatID, unknownAssetText(arg))
		return
	}
	b.reply(chatID, fmt.Sprintf("👀 Watching %s, refreshing every %s. Send /unwatch to stop.", models.Assets[asset].Name, b.interval))

	b.watchMu.Lock()
	defer b.watchMu.Unlock()

	b.mu.Lock()
	cv, exists := b.views[chatID]
	if !exists {
		cv = &chatView{}
		cv.view = scheduler.NewView(b.quotes, b.interval, func(s scheduler.Snapshot) {
			b.pushDashboard(chatID, s)
		}, b.logger.With("chat", chatID))
		b.views[chatID] = cv
	}
	b.mu.Unlock()

	if exists && cv.view.Mounted() {
		cv.view.SetAsset(asset)
		return
	}
	// Views outlive the command that created them.
	cv.view.Mount(context.WithoutCancel(ctx), asset)
}

func (b *Bot) handleUnwatch(chatID int64) {
	b.watchMu.Lock()
	b.mu.Lock()
	cv, ok := b.views[chatID]
	delete(b.views, chatID)
	b.mu.Unlock()
	if ok {
		cv.view.Unmount()
	}
	b.watchMu.Unlock()

	if !ok {
		b.reply(chatID, "Nothing to stop, use /watch <asset> first.")
		return
	}
	b.reply(chatID, "⏹ Stopped live updates.")
}

// pushDashboard sends the first dashboard message for a chat and edits it on
// later updates. If the edit fails (message deleted, too old) a new one is
// sent.
func (b *Bot) pushDashboard(chatID int64, s scheduler.Snapshot) {
	text := truncate(formatDashboard(s))

	b.mu.Lock()
	cv, ok := b.views[chatID]
	messageID := 0
	if ok {
		messageID = cv.messageID
	}
	b.mu.Unlock()
	if !ok {
		return
	}

	if messageID != 0 {
		_, err := b.sender.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
		if err == nil {
			return
		}
		b.logger.Debug("dashboard edit failed, sending new message", "chat", chatID, "error", err)
	}

	msg, err := b.reply(chatID, text)
	if err != nil {
		return
	}
	b.mu.Lock()
	if cv, ok := b.views[chatID]; ok {
		cv.messageID = msg.MessageID
	}
	b.mu.Unlock()
}

// resolveAsset accepts an asset key or ticker symbol, case-insensitive.
// Empty input defaults to bitcoin.
func resolveAsset(arg string) (string, bool) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	if arg == "" {
		return "bitcoin", true
	}
	if _, ok := models.Assets[arg]; ok {
		return arg, true
	}
	for key, coin := range models.Assets {
		if strings.EqualFold(coin.Symbol, arg) {
			return key, true
		}
	}
	return "", false
}
