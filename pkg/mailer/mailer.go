/**
 * @description
 * SMTP notifier for pickup confirmations. Renders the cooperative's
 * confirmation message (slot code, queue number, queue class, pickup date and
 * the standing collection instructions) and delivers it through the
 * configured SMTP relay.
 *
 * @dependencies
 * - gopkg.in/gomail.v2: SMTP message construction and dialing.
 * - internal/domain: The notification payload.
 */
package mailer

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/cecoalimentos/fulfillment-service/internal/domain"
)

// Mailer sends pickup confirmations over SMTP. It implements app.Notifier.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewMailer creates an SMTP-backed notifier.
func NewMailer(host string, port int, username, password, from string) *Mailer {
	return &Mailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// SendPickupConfirmation delivers the confirmation email. The dial-and-send
// runs in its own goroutine so the caller's context deadline bounds the wait
// even though gomail itself takes no context.
func (m *Mailer) SendPickupConfirmation(ctx context.Context, n domain.PickupNotification) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", n.Email)
	msg.SetHeader("Subject", fmt.Sprintf("CECOALIMENTOS - Confirmación de Pago - Retiro #%s", n.SlotCode))
	msg.SetBody("text/plain", renderConfirmationBody(n))

	done := make(chan error, 1)
	go func() {
		dialer := gomail.NewDialer(m.host, m.port, m.username, m.password)
		done <- dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func renderConfirmationBody(n domain.PickupNotification) string {
	queueLabel := "Regular"
	if n.QueueClass == domain.QueuePriority {
		queueLabel = "PRIORITARIO"
	}

	return fmt.Sprintf(`Estimado/a %s,

¡Su pago ha sido verificado exitosamente!

A continuación, los detalles para el retiro de su combo:

NÚMERO DE RETIRO: %s
NÚMERO DE COLA: %d
TIPO DE COLA: %s
FECHA DE RETIRO: %s

INSTRUCCIONES:
1. Preséntese en la fecha indicada con su número de retiro.
2. Diríjase a la cola correspondiente según su tipo.
3. Tenga a mano su cédula de identidad.
4. Espere su turno según el número de cola asignado.

Si tiene alguna pregunta, no dude en contactarnos.

Atentamente,
Cooperativa CECOALIMENTOS
`, n.Name, n.SlotCode, n.QueueNumber, queueLabel, n.ScheduledDate.Format("02/01/2006"))
}
