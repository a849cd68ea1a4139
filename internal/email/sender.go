package email

import (
	"fmt"
	"log"
	"time"
)

// SendPendingRequestAlert avisa um diretor por email de uma solicitação de
// redefinição de senha pendente. Usado como fallback quando nenhum
// dispositivo do Equipo Directivo tem push registrado.
func (s *EmailService) SendPendingRequestAlert(directorEmail, username string) error {
	subject := fmt.Sprintf("🔔 Solicitud de Acceso Pendiente - %s", username)
	htmlBody := pendingRequestTemplate(username)

	if err := s.SendEmail(directorEmail, subject, htmlBody); err != nil {
		log.Printf("❌ Erro ao enviar email de solicitação pendente: %v", err)
		return err
	}

	log.Printf("📧 Email de solicitação pendente enviado para: %s", directorEmail)
	return nil
}

// pendingRequestTemplate gera o HTML do aviso de solicitação pendente
func pendingRequestTemplate(username string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; background-color: #f4f4f4; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; border-radius: 8px; overflow: hidden; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .header { background-color: #6D28D9; color: white; padding: 20px; text-align: center; }
        .header h1 { margin: 0; font-size: 24px; }
        .content { padding: 30px; }
        .alert-box { background-color: #EDE9FE; border-left: 4px solid #6D28D9; padding: 15px; margin: 20px 0; }
        .footer { background-color: #f8f9fa; padding: 15px; text-align: center; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>🔔 Solicitud de Acceso</h1>
        </div>
        <div class="content">
            <p>Hola,</p>

            <div class="alert-box">
                El usuario <strong>%s</strong> solicitó restablecer su contraseña en el Portal Institucional.
            </div>

            <p><strong>Fecha/Hora:</strong> %s</p>

            <p>Ingrese al panel de administración para atender la solicitud. Este correo se envió porque ningún dispositivo del Equipo Directivo tiene notificaciones push registradas.</p>
        </div>
        <div class="footer">
            <p>Este es un correo automático del sistema Escuela Digital - Juntos a la Par</p>
        </div>
    </div>
</body>
</html>
`, username, time.Now().Format("02/01/2006 15:04"))
}
