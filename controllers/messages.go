package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sharedish/chat"
	"sharedish/models"
)

// The synchronous request/response surface over the conversation store,
// distinct from the live websocket path. REST appends persist without
// broadcasting, matching the original server.

func messageViews(msgs []models.Message) []gin.H {
	out := make([]gin.H, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, gin.H{
			"sender":    m.Sender,
			"text":      m.Text,
			"createdAt": m.CreatedAt,
		})
	}
	return out
}

func chatErrStatus(err error) (int, string) {
	switch {
	case chat.IsValidation(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, chat.ErrNotFound):
		return http.StatusNotFound, "conversation not found"
	default:
		return http.StatusInternalServerError, "storage error"
	}
}

// CreateOrGetChat returns the conversation for a post, creating it if
// needed and registering both users as participants.
func CreateOrGetChat(store chat.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			PostID string `json:"post_id"`
			UserA  string `json:"user_a"`
			UserB  string `json:"user_b"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.PostID) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "post_id is required"})
			return
		}
		postID := strings.TrimSpace(body.PostID)

		if _, err := store.GetOrCreate(postID, strings.TrimSpace(body.UserA)); err != nil {
			status, msg := chatErrStatus(err)
			c.JSON(status, gin.H{"msg": msg})
			return
		}
		if userB := strings.TrimSpace(body.UserB); userB != "" {
			if _, err := store.GetOrCreate(postID, userB); err != nil {
				status, msg := chatErrStatus(err)
				c.JSON(status, gin.H{"msg": msg})
				return
			}
		}

		participants, err := store.Participants(postID)
		if err != nil {
			status, msg := chatErrStatus(err)
			c.JSON(status, gin.H{"msg": msg})
			return
		}
		msgs, err := store.Messages(postID)
		if err != nil {
			status, msg := chatErrStatus(err)
			c.JSON(status, gin.H{"msg": msg})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"postKey":      postID,
			"participants": participants,
			"messages":     messageViews(msgs),
		})
	}
}

// GetChatMessages returns the full persisted history for a post's
// conversation. A post without a conversation yet yields an empty list.
func GetChatMessages(store chat.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		postID := strings.TrimSpace(c.Param("post_id"))
		if postID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "post_id is required"})
			return
		}

		msgs, err := store.Messages(postID)
		if errors.Is(err, chat.ErrNotFound) {
			c.JSON(http.StatusOK, []gin.H{})
			return
		}
		if err != nil {
			status, msg := chatErrStatus(err)
			c.JSON(status, gin.H{"msg": msg})
			return
		}
		c.JSON(http.StatusOK, messageViews(msgs))
	}
}

// AppendMessage appends a message via the synchronous path and returns
// the stored record with its server-assigned timestamp.
func AppendMessage(store chat.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			PostID string `json:"post_id"`
			Sender string `json:"sender"`
			Text   string `json:"text"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request"})
			return
		}
		// validate before the lazy create so a bad request never leaves
		// an empty conversation behind
		if strings.TrimSpace(body.Text) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"msg": chat.ErrEmptyMessage.Error()})
			return
		}
		if strings.TrimSpace(body.PostID) == "" || strings.TrimSpace(body.Sender) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "post_id and sender are required"})
			return
		}

		if _, err := store.GetOrCreate(strings.TrimSpace(body.PostID), strings.TrimSpace(body.Sender)); err != nil {
			status, msg := chatErrStatus(err)
			c.JSON(status, gin.H{"msg": msg})
			return
		}
		msg, err := store.Append(body.PostID, body.Sender, body.Text)
		if err != nil {
			status, reason := chatErrStatus(err)
			c.JSON(status, gin.H{"msg": reason})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"sender":    msg.Sender,
			"text":      msg.Text,
			"createdAt": msg.CreatedAt,
		})
	}
}
