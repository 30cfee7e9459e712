package models

import "time"

// ChatSummary is one row of a recipient's chat list: the latest message from a
// single sender.
//
// UnreadCount is always 0. Messages carry no read state, so there is nothing
// to count.
type ChatSummary struct {
	UserID          string    `json:"userId"`
	UserName        string    `json:"userName"`
	UserEmail       string    `json:"userEmail"`
	UserImage       string    `json:"userImage,omitempty"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	UnreadCount     int       `json:"unreadCount"`
}
