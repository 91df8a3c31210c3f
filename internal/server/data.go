package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/kvgate/internal/datastore"
)

// namePattern はアイデンティティ名・コレクション名・レコードIDに許可する文字種。
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// itemNamePattern はレコードのnameフィールドに許可する文字種。空白を含められる。
var itemNamePattern = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)

// createItemRequest はレコード作成リクエストのJSON構造。
type createItemRequest struct {
	// ID はレコードID。省略時はUUIDを生成する。
	ID string `json:"id"`
	// Name はレコード名。
	Name string `json:"name" binding:"required,min=1,max=100"`
	// Description はレコードの説明。
	Description string `json:"description" binding:"max=500"`
}

// updateItemRequest はレコード更新リクエストのJSON構造。
// nilのフィールドは更新対象から除外する。
type updateItemRequest struct {
	// Name はレコード名。
	Name *string `json:"name" binding:"omitempty,min=1,max=100"`
	// Description はレコードの説明。
	Description *string `json:"description" binding:"omitempty,max=500"`
}

// handleListItems はコレクション内の全レコードを取得するハンドラを返す。
func (s *Server) handleListItems() gin.HandlerFunc {
	return func(c *gin.Context) {
		collection, ok := s.collectionParam(c)
		if !ok {
			return
		}

		raw, err := s.datastore.Read(c.Request.Context(), collection)
		if err != nil {
			// コレクション自体が無い場合は空リストを返す
			if errors.Is(err, datastore.ErrNotFound) {
				c.JSON(http.StatusOK, []any{})
				return
			}
			s.respondDatastoreError(c, err)
			return
		}

		// ストアはコレクションを {id: レコード} のオブジェクトで返すため、
		// idを埋め込んだリストに変換する
		var records map[string]map[string]any
		if err := json.Unmarshal(raw, &records); err != nil {
			log.Printf("コレクションのデシリアライズに失敗: collection=%s, error=%v", collection, err)
			c.JSON(http.StatusBadGateway, gin.H{
				"code":  "unavailable",
				"error": "リモートストアの応答が不正です",
			})
			return
		}

		items := make([]map[string]any, 0, len(records))
		for id, record := range records {
			// 削除済みレコードはnullとして残ることがあるため読み飛ばす
			if record == nil {
				continue
			}
			record["id"] = id
			items = append(items, record)
		}
		c.JSON(http.StatusOK, items)
	}
}

// handleGetItem は単一レコードを取得するハンドラを返す。
func (s *Server) handleGetItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		collection, ok := s.collectionParam(c)
		if !ok {
			return
		}
		id := c.Param("id")

		raw, err := s.datastore.Read(c.Request.Context(), collection+"/"+id)
		if err != nil {
			s.respondDatastoreError(c, err)
			return
		}

		var record map[string]any
		if err := json.Unmarshal(raw, &record); err != nil {
			log.Printf("レコードのデシリアライズに失敗: collection=%s, id=%s, error=%v", collection, id, err)
			c.JSON(http.StatusBadGateway, gin.H{
				"code":  "unavailable",
				"error": "リモートストアの応答が不正です",
			})
			return
		}
		record["id"] = id
		c.JSON(http.StatusOK, record)
	}
}

// handleCreateItem は新しいレコードを作成するハンドラを返す。
func (s *Server) handleCreateItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		collection, ok := s.collectionParam(c)
		if !ok {
			return
		}

		var req createItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":  "validation_error",
				"error": "nameは必須で1〜100文字、descriptionは500文字以内です",
			})
			return
		}
		if !itemNamePattern.MatchString(req.Name) {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":  "validation_error",
				"error": "nameは英数字・空白・アンダースコア・ハイフンのみ使用できます",
			})
			return
		}
		if req.ID != "" && !namePattern.MatchString(req.ID) {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":  "validation_error",
				"error": "idは英数字・アンダースコア・ハイフンのみ使用できます",
			})
			return
		}

		id := req.ID
		if id == "" {
			id = uuid.New().String()
		}

		value := map[string]any{
			"name":        req.Name,
			"description": req.Description,
		}
		if err := s.datastore.Write(c.Request.Context(), collection+"/"+id, value); err != nil {
			s.respondDatastoreError(c, err)
			return
		}

		value["id"] = id
		c.JSON(http.StatusCreated, value)
	}
}

// handleUpdateItem は既存レコードを部分更新するハンドラを返す。
func (s *Server) handleUpdateItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		collection, ok := s.collectionParam(c)
		if !ok {
			return
		}
		id := c.Param("id")

		var req updateItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":  "validation_error",
				"error": "nameは1〜100文字、descriptionは500文字以内です",
			})
			return
		}
		if req.Name != nil && !itemNamePattern.MatchString(*req.Name) {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":  "validation_error",
				"error": "nameは英数字・空白・アンダースコア・ハイフンのみ使用できます",
			})
			return
		}

		// 指定されたフィールドのみを更新対象にする
		partial := make(map[string]any)
		if req.Name != nil {
			partial["name"] = *req.Name
		}
		if req.Description != nil {
			partial["description"] = *req.Description
		}
		if len(partial) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":  "validation_error",
				"error": "更新するフィールドが指定されていません",
			})
			return
		}

		path := collection + "/" + id

		// 存在しないレコードへの部分更新はレコードを作ってしまうため、先に存在を確認する
		raw, err := s.datastore.Read(c.Request.Context(), path)
		if err != nil {
			s.respondDatastoreError(c, err)
			return
		}

		if err := s.datastore.Update(c.Request.Context(), path, partial); err != nil {
			s.respondDatastoreError(c, err)
			return
		}

		var record map[string]any
		if err := json.Unmarshal(raw, &record); err != nil {
			record = make(map[string]any)
		}
		for k, v := range partial {
			record[k] = v
		}
		record["id"] = id
		c.JSON(http.StatusOK, record)
	}
}

// handleDeleteItem はレコードを削除するハンドラを返す。
func (s *Server) handleDeleteItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		collection, ok := s.collectionParam(c)
		if !ok {
			return
		}
		id := c.Param("id")
		path := collection + "/" + id

		// ストアは存在しないパスの削除も成功として扱うため、先に存在を確認する
		if _, err := s.datastore.Read(c.Request.Context(), path); err != nil {
			s.respondDatastoreError(c, err)
			return
		}

		if err := s.datastore.Delete(c.Request.Context(), path); err != nil {
			s.respondDatastoreError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "レコードを削除しました", "id": id})
	}
}

// collectionParam はコレクション名パラメータを検証して返す。
// 不正な場合はエラー応答を書き込み、falseを返す。
func (s *Server) collectionParam(c *gin.Context) (string, bool) {
	collection := c.Param("collection")
	if !namePattern.MatchString(collection) {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "validation_error",
			"error": "コレクション名は英数字・アンダースコア・ハイフンのみ使用できます",
		})
		return "", false
	}
	return collection, true
}

// respondDatastoreError はリモートストアのエラー分類をHTTPステータスに写して応答する。
// 分類されたエラーはそのまま呼び出し元に伝え、ゲートウェイ側での再試行は行わない。
func (s *Server) respondDatastoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, datastore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"code":  "not_found",
			"error": "レコードが見つかりません",
		})
	case errors.Is(err, datastore.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{
			"code":  "permission_denied",
			"error": "リモートストアへのアクセスが拒否されました",
		})
	case errors.Is(err, datastore.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "invalid",
			"error": "リモートストアへのリクエストが不正です",
		})
	case errors.Is(err, datastore.ErrUnavailable):
		log.Printf("リモートストアが利用できない: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"code":  "unavailable",
			"error": "リモートストアが利用できません",
		})
	default:
		log.Printf("リモートストアエラー: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "internal_error",
			"error": "内部エラーが発生しました",
		})
	}
}
