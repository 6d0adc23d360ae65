package service

import "fmt"

// ShareLink returns the public link that starts the bot with code, e.g. https://t.me/mybot?start=Ab12Cd34.
// The format is the only contract end users hold and must stay stable.
func ShareLink(host, botHandle, code string) string {
	return fmt.Sprintf("https://%s/%s?start=%s", host, botHandle, code)
}
