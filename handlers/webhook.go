package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/smtp"
	"os"
	"time"

	"pharmacy-service/internal/orders"
	"pharmacy-service/internal/stores/kafka"
	"pharmacy-service/internal/users"
	"pharmacy-service/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
)

// Webhook is called back by the payment provider, there is no user session.
// Only payment_intent.succeeded is acted on; everything else is acknowledged
// so the provider stops retrying.
func (h *Handler) Webhook(c *gin.Context) {
	traceId := uuid.NewString()
	const MaxBodyBytes = int64(65536)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

	var event stripe.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		slog.Error("failed to bind webhook event", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var paymentIntent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
			slog.Error("failed to unmarshal payment intent", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		orderId := paymentIntent.Metadata["order_id"]
		if orderId == "" {
			slog.Error("payment intent without order_id metadata", slog.String(logkey.TraceID, traceId), slog.String("payment_intent", paymentIntent.ID))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "order_id metadata missing"})
			return
		}
		slog.Info("payment intent succeeded", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.OrderID, orderId), slog.String("payment_intent", paymentIntent.ID))

		order, err := h.o.MarkOrderPaid(c.Request.Context(), orderId, paymentIntent.ID)
		if err != nil {
			if errors.Is(err, orders.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Order not found"})
				return
			}
			slog.Error("failed to mark order paid", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order"})
			return
		}

		// per-line fulfilment events
		go func(o orders.Order) {
			for _, item := range o.Items {
				jsonData, err := json.Marshal(kafka.OrderPaidEvent{
					OrderId:   o.ID,
					ProductId: item.ProductID,
					Quantity:  item.Quantity,
					CreatedAt: time.Now().UTC(),
				})
				if err != nil {
					slog.Error("failed to marshal OrderPaidEvent", slog.String(logkey.ERROR, err.Error()))
					return
				}
				if err := h.k.ProduceMessage(kafka.TopicOrderPaid, []byte(o.ID), jsonData); err != nil {
					slog.Error("failed to produce message", slog.String(logkey.ERROR, err.Error()))
					return
				}
			}
		}(*order)

		// request context dies with the response, the mail lookup needs its own
		go h.sendOrderConfirmationEmail(context.Background(), order)

		c.Status(http.StatusOK)

	default:
		slog.Info("unhandled event type", slog.String(logkey.TraceID, traceId), slog.String("event_type", string(event.Type)))
		c.JSON(http.StatusOK, gin.H{"message": "Event type not handled", "event": event.Type})
	}
}

// sendOrderConfirmationEmail mails the order owner. Skipped silently when
// SMTP_HOST is unset so local setups don't need a mail server.
func (h *Handler) sendOrderConfirmationEmail(ctx context.Context, order *orders.Order) {
	smtpHost := os.Getenv("SMTP_HOST")
	if smtpHost == "" {
		return
	}
	smtpPort := os.Getenv("SMTP_PORT")
	if smtpPort == "" {
		smtpPort = "587"
	}
	username := os.Getenv("SMTP_USER")
	password := os.Getenv("SMTP_PASS")
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = "no-reply@pharmacy.example"
	}

	user, err := h.u.GetUserByID(ctx, order.UserID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return
		}
		slog.Error("failed to fetch order owner for email", slog.String(logkey.ERROR, err.Error()))
		return
	}

	subject := "Order Confirmation"
	body := fmt.Sprintf("Thank you for your order! Your order number is %s and the total is %s. We are processing it now.",
		order.OrderNumber, order.Total.StringFixed(2))
	message := []byte("To: " + user.Email + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" +
		body + "\r\n")

	auth := smtp.PlainAuth("", username, password, smtpHost)
	if err := smtp.SendMail(smtpHost+":"+smtpPort, auth, from, []string{user.Email}, message); err != nil {
		slog.Error("failed to send confirmation email", slog.String(logkey.ERROR, err.Error()))
		return
	}
	slog.Info("confirmation email sent", slog.String(logkey.OrderID, order.ID))
}
