package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"sharedish/middleware"
	"sharedish/models"
	"sharedish/pkg/services"
)

func postView(p models.Post) gin.H {
	return gin.H{
		"id":          p.ID,
		"user_id":     p.UserID,
		"title":       p.Title,
		"description": p.Description,
		"image_url":   p.ImageURL,
		"city":        p.City,
		"available":   p.Available,
		"created_at":  p.CreatedAt,
	}
}

func currentUserID(c *gin.Context) uint {
	raw, _ := c.Get(middleware.ContextUserIDKey)
	s, _ := raw.(string)
	uid, _ := strconv.Atoi(s)
	return uint(uid)
}

// ListPosts returns listings, optionally filtered by city and a title
// search term.
func ListPosts(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := db.Model(&models.Post{}).Order("created_at desc")
		if city := strings.TrimSpace(c.Query("city")); city != "" {
			q = q.Where("city = ?", city)
		}
		if term := strings.TrimSpace(c.Query("q")); term != "" {
			q = q.Where("title LIKE ?", "%"+term+"%")
		}

		var posts []models.Post
		if err := q.Find(&posts).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "db error"})
			return
		}
		out := make([]gin.H, 0, len(posts))
		for _, p := range posts {
			out = append(out, postView(p))
		}
		c.JSON(http.StatusOK, out)
	}
}

func GetPost(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := strconv.Atoi(c.Param("post_id"))
		var post models.Post
		if err := db.First(&post, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"msg": "post not found"})
			return
		}
		c.JSON(http.StatusOK, postView(post))
	}
}

func CreatePost(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			City        string `json:"city"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Title) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "title is required"})
			return
		}

		post := models.Post{
			UserID:      currentUserID(c),
			Title:       strings.TrimSpace(body.Title),
			Description: body.Description,
			City:        strings.TrimSpace(body.City),
			Available:   true,
		}
		if err := db.Create(&post).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "failed to create post"})
			return
		}
		c.JSON(http.StatusCreated, postView(post))
	}
}

func UpdatePost(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := strconv.Atoi(c.Param("post_id"))
		var post models.Post
		if err := db.First(&post, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"msg": "post not found"})
			return
		}
		if post.UserID != currentUserID(c) {
			c.JSON(http.StatusForbidden, gin.H{"msg": "not your post"})
			return
		}

		var body struct {
			Title       *string `json:"title"`
			Description *string `json:"description"`
			City        *string `json:"city"`
			Available   *bool   `json:"available"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request"})
			return
		}
		if body.Title != nil && strings.TrimSpace(*body.Title) != "" {
			post.Title = strings.TrimSpace(*body.Title)
		}
		if body.Description != nil {
			post.Description = *body.Description
		}
		if body.City != nil {
			post.City = strings.TrimSpace(*body.City)
		}
		if body.Available != nil {
			post.Available = *body.Available
		}

		if err := db.Save(&post).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "failed to update post"})
			return
		}
		c.JSON(http.StatusOK, postView(post))
	}
}

func DeletePost(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := strconv.Atoi(c.Param("post_id"))
		var post models.Post
		if err := db.First(&post, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"msg": "post not found"})
			return
		}
		if post.UserID != currentUserID(c) {
			c.JSON(http.StatusForbidden, gin.H{"msg": "not your post"})
			return
		}
		if err := db.Delete(&post).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "failed to delete post"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"msg": "post deleted"})
	}
}

// UploadPostImage accepts a multipart image for a listing the caller owns.
func UploadPostImage(db *gorm.DB, storage *services.ObjectStorageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := strconv.Atoi(c.Param("post_id"))
		var post models.Post
		if err := db.First(&post, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"msg": "post not found"})
			return
		}
		if post.UserID != currentUserID(c) {
			c.JSON(http.StatusForbidden, gin.H{"msg": "not your post"})
			return
		}

		file, header, err := c.Request.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "image file is required"})
			return
		}
		defer file.Close()

		url, err := storage.SavePostImage(post.ID, file, header)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
			return
		}

		post.ImageURL = url
		if err := db.Save(&post).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "failed to update post"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"image_url": url})
	}
}
