package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobStatus 标注任务状态
type JobStatus string

const (
	// JobStatusPending 任务已创建，等待处理
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing 任务处理中
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted 任务完成
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed 任务失败
	JobStatusFailed JobStatus = "failed"
)

// Valid 判断状态是否合法
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Terminal 判断状态是否为终态
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// AnnotationJob 标注任务数据模型
// 记录源文档、评论文本、输出文档以及放置结果
type AnnotationJob struct {
	ID          string         `gorm:"primaryKey"`              // 任务ID
	Kind        string         `gorm:"size:10;not null;index"`  // 文档类型 pdf/docx
	FileName    string         `gorm:"not null"`                // 原始文件名
	SourceID    string         `gorm:"size:64;not null"`        // 源文档存储ID
	SourcePath  string         `gorm:"not null"`                // 源文档存储路径
	OutputID    string         `gorm:"size:64"`                 // 输出文档存储ID
	OutputPath  string         `gorm:"type:text"`              // 输出文档存储路径
	Comments    string         `gorm:"type:text;not null"`      // 评论原文
	Format      string         `gorm:"size:20;default:plain"`   // 评论格式 plain/markdown
	Fingerprint string         `gorm:"size:64;index"`           // 输入指纹，相同输入复用结果
	Status      JobStatus      `gorm:"size:20;not null;index"`  // 任务状态
	Sections    int            `gorm:"not null;default:0"`      // 评论段总数
	Considered  int            `gorm:"not null;default:0"`      // 参与定位的评论段数
	Placed      int            `gorm:"not null;default:0"`      // 成功放置的评论数
	Shapes      int            `gorm:"not null;default:0"`      // 写入的标注数
	Skipped     datatypes.JSON `gorm:"type:json"`               // 跳过的评论详情
	Error       string         `gorm:"type:text"`               // 错误信息
	TaskID      string         `gorm:"size:50;index"`           // 异步任务ID
	CreatedAt   time.Time      `gorm:"not null;index"`          // 创建时间
	UpdatedAt   time.Time      `gorm:"not null"`                // 更新时间
	CompletedAt *time.Time     `gorm:"index"`                  // 完成时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (j *AnnotationJob) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	if j.Status == "" {
		j.Status = JobStatusPending
	}
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (j *AnnotationJob) BeforeUpdate(tx *gorm.DB) (err error) {
	j.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (AnnotationJob) TableName() string {
	return "annotation_jobs"
}
