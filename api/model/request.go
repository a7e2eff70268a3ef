package model

import (
	"mime/multipart"
)

// PaginationRequest 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// Offset 当前页的起始偏移
func (p *PaginationRequest) Offset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// AnnotationSubmitRequest 提交标注任务请求
// 评论文本通过 comments 字段或 comments_file 文件提供
type AnnotationSubmitRequest struct {
	File         *multipart.FileHeader `form:"file" binding:"required"`                         // 待标注的文档
	Kind         string                `form:"kind" binding:"required,dockind"`                 // 文档类型 pdf/docx
	Comments     string                `form:"comments"`                                        // 评论文本
	CommentsFile *multipart.FileHeader `form:"comments_file"`                                   // 评论文本文件
	Format       string                `form:"format" binding:"omitempty,oneof=plain markdown"` // 评论格式
}

// AnnotationListRequest 标注任务列表请求
type AnnotationListRequest struct {
	PaginationRequest
	Status   string `form:"status" binding:"omitempty,oneof=pending processing completed failed"` // 任务状态
	Kind     string `form:"kind" binding:"omitempty,dockind"`                                     // 文档类型
	FileName string `form:"file_name"`                                                            // 文件名，模糊匹配
}

// AnnotationIDRequest 按ID访问标注任务
type AnnotationIDRequest struct {
	ID string `uri:"id" binding:"required"` // 任务ID
}

// CommentParseRequest 评论解析请求
type CommentParseRequest struct {
	Comments string `json:"comments" binding:"required"`                     // 评论文本
	Format   string `json:"format" binding:"omitempty,oneof=plain markdown"` // 评论格式
}
