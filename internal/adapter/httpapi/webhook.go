package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dailydev/internal/messaging"
	"dailydev/internal/platform/logger"
)

// emptyTwiML ответ, после которого Twilio ничего не отправляет пользователю.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// whatsappWebhook входящее сообщение. Twilio всегда получает 200 с пустым
// TwiML, ошибки только логируются.
func (h *handler) whatsappWebhook(c *gin.Context) {
	body := strings.TrimSpace(c.PostForm("Body"))
	from := strings.TrimSpace(c.PostForm("From"))
	defer c.Data(http.StatusOK, "application/xml", []byte(emptyTwiML))

	if from == "" {
		h.log.Warn("whatsapp webhook without From", "message_sid", c.PostForm("MessageSid"))
		return
	}
	if !strings.HasPrefix(from, messaging.ChannelWhatsApp+":") {
		from = messaging.ChannelWhatsApp + ":" + from
	}

	// Twilio обрывает запрос через 15 секунд; ответ всё равно дорабатывается
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.cfg.ReplyTimeout)
	defer cancel()

	advanced, err := h.svc.HandleInboundReply(ctx, from, body)
	if err != nil {
		h.log.Error("whatsapp webhook", "from", logger.MaskHandle(from), "err", err)
		return
	}
	h.log.Info("whatsapp message received", "from", logger.MaskHandle(from),
		"message_sid", c.PostForm("MessageSid"), "advanced", advanced)
}

func (h *handler) whatsappVerify(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "WhatsApp webhook endpoint is active"})
}
