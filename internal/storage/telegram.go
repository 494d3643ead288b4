package storage

import (
	"context"
	"sync"

	"github.com/gotd/td/fileid"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/tilawa/internal/domain"
	"go.uber.org/zap"
)

const audioMIME = "audio/mpeg"

var ErrNotAuthorized = errors.New("storage session is not authorized, run the login command first")

// CodePrompt asks the operator for the one-time login code.
type CodePrompt func(ctx context.Context) (string, error)

// Session is the process-wide user session used for storage channel uploads.
// It connects on first use and stays up until Close.
type Session struct {
	log     zerolog.Logger
	zap     *zap.Logger
	config  domain.TelegramConfig
	session string

	mu     sync.Mutex
	api    *tg.Client
	cancel context.CancelFunc
	done   chan struct{}
	runErr error
}

func NewSession(log zerolog.Logger, zapLog *zap.Logger, config domain.TelegramConfig, sessionPath string) *Session {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}

	return &Session{
		log:     log.With().Str("module", "session").Logger(),
		zap:     zapLog,
		config:  config,
		session: sessionPath,
	}
}

func (s *Session) newClient() *telegram.Client {
	return telegram.NewClient(s.config.APIID, s.config.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: s.session},
		Logger:         s.zap,
	})
}

// Login authenticates the session interactively and stores it in the session file.
func (s *Session) Login(ctx context.Context, prompt CodePrompt) error {
	client := s.newClient()

	return client.Run(ctx, func(ctx context.Context) error {
		codeAuth := auth.CodeAuthenticatorFunc(func(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
			return prompt(ctx)
		})
		flow := auth.NewFlow(auth.Constant(s.config.Phone, s.config.Password, codeAuth), auth.SendCodeOptions{})
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return errors.Wrap(err, "auth flow")
		}

		self, err := client.Self(ctx)
		if err != nil {
			return errors.Wrap(err, "fetching self")
		}
		s.log.Info().Int64("user_id", self.ID).Str("username", self.Username).Msg("storage session authorized")
		return nil
	})
}

// connect returns a live API client, starting the session if it is not running.
func (s *Session) connect(ctx context.Context) (*tg.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.api != nil {
		select {
		case <-s.done:
			s.log.Warn().Err(s.runErr).Msg("storage session stopped, reconnecting")
			s.api = nil
		default:
			return s.api, nil
		}
	}

	client := s.newClient()
	runCtx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan struct{})

	var runErr error
	go func() {
		defer close(done)
		runErr = client.Run(runCtx, func(ctx context.Context) error {
			status, err := client.Auth().Status(ctx)
			if err != nil {
				return errors.Wrap(err, "auth status")
			}
			if !status.Authorized {
				return ErrNotAuthorized
			}
			close(ready)
			<-ctx.Done()
			return nil
		})
		s.runErr = runErr
	}()

	select {
	case <-ready:
	case <-done:
		cancel()
		if runErr == nil {
			runErr = errors.New("storage session stopped before it was ready")
		}
		return nil, runErr
	case <-ctx.Done():
		cancel()
		<-done
		return nil, ctx.Err()
	}

	s.api = client.API()
	s.cancel = cancel
	s.done = done
	s.log.Info().Msg("storage session started")

	return s.api, nil
}

// SendAudio uploads the file at obj.Path to the storage channel and returns
// the file id of the resulting document.
func (s *Session) SendAudio(ctx context.Context, obj domain.AudioObject) (string, error) {
	api, err := s.connect(ctx)
	if err != nil {
		return "", err
	}

	file, err := uploader.NewUploader(api).FromPath(ctx, obj.Path)
	if err != nil {
		return "", errors.Wrap(err, "uploading file parts")
	}

	attr := &tg.DocumentAttributeAudio{}
	attr.SetTitle(obj.Title)
	attr.SetPerformer(obj.Performer)

	media := message.UploadedDocument(file).
		Filename(obj.Filename).
		MIME(audioMIME).
		Attributes(attr)

	updates, err := message.NewSender(api).Resolve(s.config.StorageChannel).Media(ctx, media)
	if err != nil {
		return "", errors.Wrapf(err, "sending document to %s", s.config.StorageChannel)
	}

	doc, err := documentFromUpdates(updates)
	if err != nil {
		return "", err
	}

	ref, err := fileid.EncodeFileID(fileid.FromDocument(doc))
	if err != nil {
		return "", errors.Wrap(err, "encoding file id")
	}

	return ref, nil
}

// Close stops the session. It is safe to call when the session never started.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.api = nil
	s.log.Info().Msg("storage session closed")

	return nil
}

func documentFromUpdates(u tg.UpdatesClass) (*tg.Document, error) {
	var updates []tg.UpdateClass
	switch v := u.(type) {
	case *tg.Updates:
		updates = v.Updates
	case *tg.UpdatesCombined:
		updates = v.Updates
	case *tg.UpdateShort:
		updates = []tg.UpdateClass{v.Update}
	}

	for _, update := range updates {
		var msg tg.MessageClass
		switch v := update.(type) {
		case *tg.UpdateNewChannelMessage:
			msg = v.Message
		case *tg.UpdateNewMessage:
			msg = v.Message
		default:
			continue
		}

		m, ok := msg.(*tg.Message)
		if !ok {
			continue
		}
		media, ok := m.Media.(*tg.MessageMediaDocument)
		if !ok || media.Document == nil {
			continue
		}
		if doc, ok := media.Document.AsNotEmpty(); ok {
			return doc, nil
		}
	}

	return nil, errors.Errorf("no document in send result (%T)", u)
}
