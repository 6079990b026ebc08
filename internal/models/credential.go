// models содержит типы данных клиентской сессии и realtime-канала.
package models

import "time"

// User — минимальный профиль пользователя, сохраняемый вместе с сессией.
type User struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Credential — полный набор учётных данных клиентской сессии.
//
// ExpiresAt — абсолютное время, после которого access-токен использовать
// нельзя; пересчитывается при каждом успешном login/refresh. Все четыре
// токен-несущих поля заменяются при refresh одновременно.
type Credential struct {
	AccessToken  string
	RefreshToken string
	CSRFToken    string
	ExpiresAt    time.Time
	User         User
}
