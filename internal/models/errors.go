package models

import "errors"

var (
	// ErrJobNotFound 标注任务不存在错误
	ErrJobNotFound = errors.New("annotation job not found")

	// ErrInvalidJobStatus 无效的任务状态错误
	ErrInvalidJobStatus = errors.New("invalid job status")

	// ErrJobNotCompleted 任务尚未完成，没有输出文档
	ErrJobNotCompleted = errors.New("annotation job not completed")
)
