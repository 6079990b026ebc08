package models

import "time"

// Message — одно сообщение диалога.
//
// Инвариант упорядочивания: сообщения добавляются в последовательность
// диалога строго в порядке прихода кадров из канала; клиент не выполняет
// ни переупорядочивания по Timestamp, ни дедупликации.
type Message struct {
	ID          int64
	SenderID    int64
	RecipientID int64
	Content     string
	Timestamp   time.Time
	Read        bool
}
