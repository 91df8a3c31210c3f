package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrNotFound は指定パスにレコードが存在しない場合のエラー。
var ErrNotFound = errors.New("レコードが見つからない")

// ErrPermissionDenied はリモートストアがアクセスを拒否した場合のエラー。
var ErrPermissionDenied = errors.New("リモートストアへのアクセスが拒否された")

// ErrInvalid はリモートストアがリクエスト内容を不正と判断した場合のエラー。
var ErrInvalid = errors.New("リモートストアへのリクエストが不正")

// ErrUnavailable はリモートストアが利用できない場合のエラー。
// サーバーエラーと通信エラーの両方を含む。再試行はこのゲートウェイでは行わない。
var ErrUnavailable = errors.New("リモートストアが利用できない")

// Client はリモートKVストアのREST APIクライアント。
// パス（例: "items/abc-123"）でレコード位置を指定してCRUD操作を行う。
// プロセス起動時に1つだけ生成し、各コンポーネントに注入して共有する。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL はリモートKVストアのベースURL。
	baseURL string
	// authSecret はストアへの認証シークレット。空なら送信しない。
	authSecret string
}

// New は新しいリモートKVストアクライアントを生成する。
func New(baseURL, authSecret string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:    baseURL,
		authSecret: authSecret,
	}
}

// Read は指定パスのデータを読み取る。
// ストアはレコードが無いパスに対してJSONのnullを返すため、nullもErrNotFoundに写す。
func (c *Client) Read(ctx context.Context, path string) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if isJSONNull(body) {
		return nil, ErrNotFound
	}
	return body, nil
}

// Write は指定パスにデータを書き込む。既存データは置き換えられる。
func (c *Client) Write(ctx context.Context, path string, value any) error {
	_, err := c.do(ctx, http.MethodPut, path, value)
	return err
}

// Update は指定パスのデータを部分更新する。
// partialに含まれるキーのみが更新され、他のキーは保持される。
func (c *Client) Update(ctx context.Context, path string, partial map[string]any) error {
	_, err := c.do(ctx, http.MethodPatch, path, partial)
	return err
}

// Delete は指定パスのデータを削除する。
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil)
	return err
}

// do はリモートKVストアへのHTTPリクエストを実行する共通処理。
// レスポンスのステータスコードをエラー分類に写して返す。
func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	reqURL := fmt.Sprintf("%s/%s.json", c.baseURL, path)
	if c.authSecret != "" {
		reqURL += "?auth=" + url.QueryEscape(c.authSecret)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗: %w", err)
	}

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	return respBody, nil
}

// classifyStatus はHTTPステータスコードをエラー分類に写す。
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrPermissionDenied
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return ErrInvalid
	default:
		return fmt.Errorf("%w: status=%d", ErrUnavailable, status)
	}
}

// isJSONNull はボディがJSONのnullかどうかを判定する。
func isJSONNull(body []byte) bool {
	return string(bytes.TrimSpace(body)) == "null"
}
