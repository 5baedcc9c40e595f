package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/s33g/lumin/internal/chat"
	"github.com/s33g/lumin/internal/config"
	"github.com/s33g/lumin/internal/conversation"
	"github.com/s33g/lumin/internal/llm"
	"github.com/s33g/lumin/internal/metrics"
	"github.com/s33g/lumin/internal/ratelimit"
	"github.com/s33g/lumin/internal/storage"
)

// Bot answers messages in the configured Discord channels
type Bot struct {
	session       *discordgo.Session
	config        *config.Config
	configPath    string // Path to config file for reload
	configWatcher *config.Watcher
	watching      bool
	configMu      sync.RWMutex
	storage       *storage.Client
	chat          *chat.Service
	sessions      *sessionRegistry
	rateLimiter   *ratelimit.Limiter
	logger        zerolog.Logger
	ctx           context.Context
	cancel        context.CancelFunc
}

// Option configures a Bot
type Option func(*options)

type options struct {
	metrics *metrics.StreamMetrics
}

// WithMetrics records stream metrics for every reply
func WithMetrics(m *metrics.StreamMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// New creates a new bot instance
func New(ctx context.Context, cfg *config.Config, configPath string, logger zerolog.Logger, opts ...Option) (*Bot, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	storageClient, err := storage.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}

	rateLimiter, err := ratelimit.NewLimiter(ctx, storageClient, cfg.RateLimit)
	if err != nil {
		storageClient.Close()
		return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
	}

	store := conversation.NewRedisStore(storageClient, cfg.Session.TTL(), cfg.Session.HistoryLimit)
	client := llm.NewClient(cfg.OpenRouter, logger)
	service := chat.NewService(client, llm.SettingsFromConfig(cfg.Model, cfg.Stream), cfg.APIKey(), logger,
		chat.WithMetrics(o.metrics))

	bot := newBot(cfg, service, newSessionRegistry(store, conversation.NewTokenCounter()), rateLimiter, logger)
	bot.session = session
	bot.configPath = configPath
	bot.storage = storageClient

	bot.registerHandlers()

	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, bot.Reload, logger)
		if err != nil {
			bot.logger.Warn().Err(err).Msg("Failed to create config watcher - hot reload disabled")
		} else {
			bot.configWatcher = watcher
		}
	}

	return bot, nil
}

func newBot(cfg *config.Config, service *chat.Service, sessions *sessionRegistry, limiter *ratelimit.Limiter, logger zerolog.Logger) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		config:      cfg,
		chat:        service,
		sessions:    sessions,
		rateLimiter: limiter,
		logger:      logger.With().Str("component", "bot").Logger(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start connects to Discord and registers slash commands
func (b *Bot) Start() error {
	b.logger.Info().Msg("Starting Discord bot...")

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	if b.configWatcher != nil {
		b.watching = true
		go b.configWatcher.Run(b.ctx)
	}

	b.logger.Info().Msg("Bot started successfully")
	return nil
}

// Stop cancels replies in progress and disconnects
func (b *Bot) Stop() error {
	b.logger.Info().Msg("Stopping Discord bot...")

	b.sessions.CancelAll()
	b.cancel()
	if b.watching {
		<-b.configWatcher.Done()
	}

	if err := b.session.Close(); err != nil {
		b.logger.Error().Err(err).Msg("Failed to close Discord session")
	}

	if err := b.storage.Close(); err != nil {
		b.logger.Error().Err(err).Msg("Failed to close Redis connection")
	}

	b.logger.Info().Msg("Bot stopped")
	return nil
}

// Reload applies a new configuration. Replies already streaming keep the
// settings they started with.
func (b *Bot) Reload(cfg *config.Config) error {
	if err := cfg.ValidateBot(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	b.configMu.Lock()
	defer b.configMu.Unlock()

	b.chat.Update(llm.SettingsFromConfig(cfg.Model, cfg.Stream), cfg.APIKey())
	b.rateLimiter.SetLimits(cfg.RateLimit)
	b.config = cfg

	b.logger.Info().Str("model", cfg.Model.ID).Msg("Configuration reloaded successfully")
	return nil
}

// GetConfig safely returns the current configuration
func (b *Bot) GetConfig() *config.Config {
	b.configMu.RLock()
	defer b.configMu.RUnlock()
	return b.config
}

// registerHandlers registers Discord event handlers
func (b *Bot) registerHandlers() {
	b.session.AddHandler(b.handleInteractionCreate)
	b.session.AddHandler(b.handleMessageCreate)
	b.session.AddHandler(b.handleReady)
}

// handleReady is called when the bot is ready
func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info().
		Str("username", r.User.Username).
		Int("guilds", len(r.Guilds)).
		Msg("Bot is ready")
}
