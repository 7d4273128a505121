// Package models はアプリケーションで使用するデータ構造を定義します
package models

// Room はルームディレクトリに永続化されるルームの情報を表します
// 参加者の一覧は永続化されず、プロセス内のレジストリだけが保持します
type Room struct {
	RoomId    string `json:"roomId"`    // ルームの一意な識別子
	CreatedAt int64  `json:"createdAt"` // ルーム作成日時（Unixタイムスタンプ）
}

// Member はルームに現在参加している接続を表します
type Member struct {
	ParticipantId string `json:"participantId"`    // 接続ID（ULID）
	PeerId        string `json:"peerId,omitempty"` // 参加時にクライアントが渡すピアID（中身は解釈しない）
}
