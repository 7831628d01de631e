package email

import (
	"fmt"
	"time"

	"pillnow/pkg/models"
)

// DoseReminderTemplate gera HTML para lembrete de dose
func DoseReminderTemplate(elderName string, minutesUntil int) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; background-color: #f4f4f4; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; border-radius: 8px; overflow: hidden; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .header { background-color: #007BFF; color: white; padding: 20px; text-align: center; }
        .header h1 { margin: 0; font-size: 24px; }
        .content { padding: 30px; }
        .reminder-box { background-color: #D1ECF1; border-left: 4px solid #007BFF; padding: 15px; margin: 20px 0; }
        .footer { background-color: #f8f9fa; padding: 15px; text-align: center; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>💊 Lembrete de Medicação</h1>
        </div>
        <div class="content">
            <p>Olá <strong>%s</strong>,</p>

            <div class="reminder-box">
                Sua medicação está agendada para daqui a <strong>%d minutos</strong>.
            </div>

            <p><strong>Data/Hora:</strong> %s</p>

            <p>Não se esqueça de tomar o remédio no horário. Se já tomou, confirme no aplicativo.</p>
        </div>
        <div class="footer">
            <p>Este é um email automático do sistema PillNow</p>
            <p>Não responda a este email</p>
        </div>
    </div>
</body>
</html>
    `, elderName, minutesUntil, time.Now().Format("02/01/2006 15:04"))
}

// MissedDoseAlertTemplate gera HTML para alerta de dose perdida
func MissedDoseAlertTemplate(elderName, caregiverName string, scheduleID int64) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; background-color: #f4f4f4; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; border-radius: 8px; overflow: hidden; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .header { background-color: #FF0000; color: white; padding: 20px; text-align: center; }
        .header h1 { margin: 0; font-size: 24px; }
        .content { padding: 30px; }
        .alert-box { background-color: #FFF3CD; border-left: 4px solid #FF0000; padding: 15px; margin: 20px 0; }
        .footer { background-color: #f8f9fa; padding: 15px; text-align: center; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>⚠️ Dose Não Tomada</h1>
        </div>
        <div class="content">
            <p>Olá <strong>%s</strong>,</p>

            <div class="alert-box">
                <strong>ALERTA:</strong> <strong>%s</strong> não tomou a medicação agendada (dose #%d).
            </div>

            <p><strong>Data/Hora:</strong> %s</p>

            <p>Por favor, verifique se está tudo bem com o idoso.</p>

            <p><strong>Ações recomendadas:</strong></p>
            <ul>
                <li>Ligar para o idoso para verificar se está tudo bem</li>
                <li>Confirmar se o medicamento está acessível</li>
                <li>Verificar se as notificações estão habilitadas no app</li>
            </ul>
        </div>
        <div class="footer">
            <p>Este é um email automático do sistema PillNow</p>
            <p>Não responda a este email</p>
        </div>
    </div>
</body>
</html>
    `, caregiverName, elderName, scheduleID, time.Now().Format("02/01/2006 15:04"))
}

// AdherenceReportTemplate gera HTML para o relatório periódico de adesão
func AdherenceReportTemplate(elderName, caregiverName string, stats models.AdherenceStats) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; background-color: #f4f4f4; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; border-radius: 8px; overflow: hidden; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .header { background-color: #28A745; color: white; padding: 20px; text-align: center; }
        .header h1 { margin: 0; font-size: 24px; }
        .content { padding: 30px; }
        .stats-table { width: 100%%; border-collapse: collapse; margin: 20px 0; }
        .stats-table td { padding: 8px 12px; border-bottom: 1px solid #eee; }
        .footer { background-color: #f8f9fa; padding: 15px; text-align: center; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>📊 Relatório de Adesão</h1>
        </div>
        <div class="content">
            <p>Olá <strong>%s</strong>,</p>

            <p>Resumo de adesão de <strong>%s</strong>:</p>

            <table class="stats-table">
                <tr><td>Total de doses</td><td><strong>%d</strong></td></tr>
                <tr><td>Tomadas (verificadas)</td><td><strong>%d</strong></td></tr>
                <tr><td>Concluídas</td><td><strong>%d</strong></td></tr>
                <tr><td>Perdidas</td><td><strong>%d</strong></td></tr>
                <tr><td>Com atraso</td><td><strong>%d</strong></td></tr>
                <tr><td>Taxa de adesão</td><td><strong>%.2f%%</strong></td></tr>
                <tr><td>Taxa de perda</td><td><strong>%.2f%%</strong></td></tr>
            </table>

            <p><strong>Gerado em:</strong> %s</p>
        </div>
        <div class="footer">
            <p>Este é um email automático do sistema PillNow</p>
            <p>Não responda a este email</p>
        </div>
    </div>
</body>
</html>
    `, caregiverName, elderName,
		stats.TotalSchedules, stats.Taken, stats.Done, stats.Missed, stats.LateDoses,
		stats.AdherenceRate, stats.MissedRate,
		time.Now().Format("02/01/2006 15:04"))
}
