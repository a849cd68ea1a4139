package push

import (
	"context"
	"fmt"
	"log"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FirebaseService envia notificações push via FCM para os dispositivos
// registrados dos usuários do portal.
type FirebaseService struct {
	client *messaging.Client
	ctx    context.Context
}

// NewFirebaseService inicializa o cliente Firebase com suporte a FCM
func NewFirebaseService(credentialsPath string) (*FirebaseService, error) {
	ctx := context.Background()

	opt := option.WithCredentialsFile(credentialsPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Messaging client: %w", err)
	}

	log.Println("✅ Firebase messaging inicializado com sucesso")

	return &FirebaseService{
		client: client,
		ctx:    ctx,
	}, nil
}

// SendReminderNotification avisa um dispositivo de uma tarefa pendente
func (s *FirebaseService) SendReminderNotification(deviceToken, taskTitle string) error {
	if deviceToken == "" {
		return fmt.Errorf("device token is empty")
	}

	message := &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: "Recordatorio Escolar",
			Body:  fmt.Sprintf("Pendiente: %s", taskTitle),
		},
		Data: map[string]string{
			"type":      "reminder",
			"priority":  "high",
			"timestamp": fmt.Sprintf("%d", time.Now().Unix()),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:        "default",
				Priority:     messaging.PriorityHigh,
				ChannelID:    "escuela_avisos",
				DefaultSound: true,
			},
		},
	}

	response, err := s.client.Send(s.ctx, message)
	if err != nil {
		return fmt.Errorf("error sending reminder push: %w", err)
	}

	log.Printf("📲 Recordatorio enviado (%s): %s", taskTitle, response)
	return nil
}

// SendReminderMultiple envia o lembrete para vários tokens e devolve
// quantos envios tiveram sucesso.
func (s *FirebaseService) SendReminderMultiple(tokens []string, taskTitle string) int {
	sent := 0
	for _, token := range tokens {
		if err := s.SendReminderNotification(token, taskTitle); err != nil {
			log.Printf("❌ Falha ao enviar para token: %v", err)
			continue
		}
		sent++
	}
	return sent
}

// SendAdminRequestNotification avisa um diretor de uma solicitação de
// redefinição de senha pendente.
func (s *FirebaseService) SendAdminRequestNotification(deviceToken, username string) error {
	if deviceToken == "" {
		return fmt.Errorf("device token is empty")
	}

	message := &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: "Solicitud de Acceso",
			Body:  fmt.Sprintf("El usuario %q solicitó restablecer su contraseña.", username),
		},
		Data: map[string]string{
			"type":      "admin_request",
			"username":  username,
			"timestamp": fmt.Sprintf("%d", time.Now().Unix()),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:        "default",
				Priority:     messaging.PriorityHigh,
				ChannelID:    "escuela_admin",
				DefaultSound: true,
			},
		},
	}

	response, err := s.client.Send(s.ctx, message)
	if err != nil {
		return fmt.Errorf("error sending admin request push: %w", err)
	}

	log.Printf("🔔 Diretor notificado sobre solicitação de %s: %s", username, response)
	return nil
}

// ValidateToken verifica se um device token ainda é válido
func (s *FirebaseService) ValidateToken(deviceToken string) bool {
	if deviceToken == "" {
		return false
	}

	// Mensagem de dados silenciosa, só para sondar o token
	message := &messaging.Message{
		Token: deviceToken,
		Data: map[string]string{
			"type": "token_validation",
		},
		Android: &messaging.AndroidConfig{
			Priority: "normal",
		},
	}

	if _, err := s.client.Send(s.ctx, message); err != nil {
		if IsInvalidTokenError(err) {
			return false
		}
		log.Printf("⚠️  ValidateToken falhou de forma transitória: %v", err)
		return true
	}
	return true
}

// IsInvalidTokenError verifica se o erro retornado pelo Firebase indica que o token é inválido
func IsInvalidTokenError(err error) bool {
	if messaging.IsRegistrationTokenNotRegistered(err) || messaging.IsSenderIDMismatch(err) {
		return true
	}
	return false
}
