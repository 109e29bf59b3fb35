package fulfill

import (
	"fmt"
	"strings"

	"github.com/eitchpi/narrartive-backend/internal/exports"
)

// buyerSubject 买家交付邮件标题
func buyerSubject(order *exports.LogicalOrder) string {
	return fmt.Sprintf("Your digital art order %s is ready", order.ID)
}

// buyerHTML 买家交付邮件正文：下载引用 + 解压密码
func buyerHTML(order *exports.LogicalOrder, archiveName, archiveID, password string) string {
	name := order.BuyerName
	if name == "" {
		name = "there"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<p>Hi %s,</p>", name)
	fmt.Fprintf(&b, "<p>Thank you for your order <b>%s</b>! Your files are ready for download.</p>", order.ID)
	fmt.Fprintf(&b, "<p>Archive: <b>%s</b> (reference: %s)</p>", archiveName, archiveID)
	fmt.Fprintf(&b, "<p>Password: <b>%s</b></p>", password)
	b.WriteString("<p>The download link stays available for 24 hours. ")
	b.WriteString("If anything is missing, just reply to this email.</p>")
	b.WriteString("<p>Enjoy your art!</p>")
	return b.String()
}
