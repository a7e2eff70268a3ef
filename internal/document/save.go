package document

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// writeAtomic 先写入目标目录下的临时文件，成功后再重命名为目标文件
// 失败时删除临时文件，不会留下半成品
func writeAtomic(dst string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrSave, err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = write(bw); err != nil {
		return fmt.Errorf("%w: %v", ErrSave, err)
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %v", ErrSave, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", ErrSave, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrSave, err)
	}
	if err = os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("%w: rename: %v", ErrSave, err)
	}
	return nil
}
