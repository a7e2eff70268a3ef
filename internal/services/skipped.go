package services

import (
	"encoding/json"
	"fmt"

	"github.com/fyerfyer/doc-annotator/internal/annotate"
	"github.com/fyerfyer/doc-annotator/internal/models"
)

// decodeSkipped 解析任务中记录的跳过详情
func decodeSkipped(job *models.AnnotationJob, out *[]annotate.Skip) error {
	*out = []annotate.Skip{}
	if len(job.Skipped) == 0 {
		return nil
	}
	if err := json.Unmarshal(job.Skipped, out); err != nil {
		return fmt.Errorf("failed to decode skipped comments of job %s: %w", job.ID, err)
	}
	return nil
}

// SkippedOf 返回任务中跳过的评论
func SkippedOf(job *models.AnnotationJob) ([]annotate.Skip, error) {
	var skipped []annotate.Skip
	err := decodeSkipped(job, &skipped)
	return skipped, err
}
