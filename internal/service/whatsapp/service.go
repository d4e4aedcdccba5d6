package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/campcheck/internal/config"
	"github.com/mamadbah2/campcheck/internal/domain/models"
	"github.com/mamadbah2/campcheck/internal/service/commands"
	client "github.com/mamadbah2/campcheck/pkg/clients/whatsapp"
)

const sendTimeout = 10 * time.Second

const internalErrorReply = "Something went wrong on our side. Please try again."

// MessagingService describes the operations the HTTP layer and the scheduler can perform.
type MessagingService interface {
	VerifyWebhookToken(mode, verifyToken, challenge string) (string, error)
	HandleWebhook(ctx context.Context, payload models.WebhookPayload) error
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
	SendText(ctx context.Context, to, body string) error
}

// MetaWhatsAppService is the production implementation backed by WhatsApp Cloud API.
type MetaWhatsAppService struct {
	cfg        config.WhatsAppConfig
	client     client.Client
	dispatcher commands.Dispatcher
	logger     *zap.Logger
}

// NewMetaWhatsAppService wires a new service instance.
func NewMetaWhatsAppService(cfg config.WhatsAppConfig, client client.Client, dispatcher commands.Dispatcher, logger *zap.Logger) *MetaWhatsAppService {
	svc := &MetaWhatsAppService{
		cfg:        cfg,
		client:     client,
		dispatcher: dispatcher,
		logger:     logger,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

// SetDispatcher attaches the command dispatcher. Call it before the webhook is served.
func (s *MetaWhatsAppService) SetDispatcher(dispatcher commands.Dispatcher) {
	s.dispatcher = dispatcher
}

// VerifyWebhookToken validates the callback verification token.
func (s *MetaWhatsAppService) VerifyWebhookToken(mode, verifyToken, challenge string) (string, error) {
	if mode == "" || verifyToken == "" {
		return "", errors.New("missing mode or verify token")
	}

	if !strings.EqualFold(mode, "subscribe") {
		return "", fmt.Errorf("unsupported hub.mode %s", mode)
	}

	if s.cfg.VerifyToken == "" || verifyToken != s.cfg.VerifyToken {
		return "", errors.New("invalid verify token")
	}

	return challenge, nil
}

// HandleWebhook runs every inbound counselor message as a command and replies.
// Delivery statuses are logged and otherwise ignored.
func (s *MetaWhatsAppService) HandleWebhook(ctx context.Context, payload models.WebhookPayload) error {
	var firstErr error

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, st := range change.Value.Statuses {
				s.logger.Debug("message status", zap.String("message_id", st.ID), zap.String("status", st.Status))
			}

			names := contactNames(change.Value.Contacts)
			for _, msg := range change.Value.Messages {
				if err := s.handleInboundMessage(ctx, msg, names[msg.From]); err != nil {
					s.logger.Error("failed to handle inbound message", zap.Error(err), zap.String("message_id", msg.ID))
					if firstErr == nil {
						firstErr = err
					}
				}
			}
		}
	}

	return firstErr
}

func (s *MetaWhatsAppService) handleInboundMessage(ctx context.Context, msg models.InboundMessage, senderName string) error {
	if s.dispatcher == nil {
		return errors.New("command dispatcher not configured")
	}

	text := extractMessageText(msg)
	if text == "" {
		s.logger.Debug("ignoring message without text", zap.String("message_id", msg.ID), zap.String("type", msg.Type))
		return nil
	}

	if err := s.client.MarkRead(ctx, msg.ID); err != nil {
		s.logger.Debug("mark read failed", zap.String("message_id", msg.ID), zap.Error(err))
	}

	operator := senderName
	if operator == "" {
		operator = msg.From
	}

	cmd := models.ParseCommand(text)
	s.logger.Info("parsed inbound command",
		zap.String("from", msg.From),
		zap.String("command", string(cmd.Type)),
		zap.Strings("args", cmd.Args))

	reply, err := s.dispatcher.HandleCommand(ctx, cmd, operator)
	if err != nil {
		friendly, ok := commands.ReplyForError(err)
		if !ok {
			s.logger.Error("command failed", zap.String("command", string(cmd.Type)), zap.Error(err))
			friendly = internalErrorReply
		}
		reply = friendly
	}

	return s.SendText(ctx, msg.From, reply)
}

// SendOutbound lets internal operators push quick notifications via HTTP.
func (s *MetaWhatsAppService) SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error {
	return s.SendText(ctx, req.To, req.Message)
}

// SendText delivers body to a single number.
func (s *MetaWhatsAppService) SendText(ctx context.Context, to, body string) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	id, err := s.client.SendTextMessage(ctxWithTimeout, client.TextMessage{To: to, Body: body})
	if err != nil {
		return err
	}
	s.logger.Debug("message sent", zap.String("to", to), zap.String("message_id", id))
	return nil
}

func contactNames(contacts []models.Contact) map[string]string {
	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		names[c.WaID] = c.Profile.Name
	}
	return names
}

func extractMessageText(msg models.InboundMessage) string {
	if msg.Text != nil {
		return strings.TrimSpace(msg.Text.Body)
	}

	if msg.Interactive != nil && msg.Interactive.ButtonReply != nil {
		return msg.Interactive.ButtonReply.ID
	}

	return ""
}
