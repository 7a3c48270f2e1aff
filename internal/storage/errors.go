package storage

import (
	"errors"
	"strings"

	"github.com/minio/minio-go/v7"
)

// errorClass 描述一类 S3/MinIO 错误：结构化错误码，以及网关把错误压成字符串时可识别的片段。
type errorClass struct {
	codes    []string
	messages []string
}

var (
	noSuchKey = errorClass{
		codes:    []string{"nosuchkey", "notfound"},
		messages: []string{"nosuchkey", "specified key does not exist"},
	}
	noSuchBucket = errorClass{
		codes:    []string{"nosuchbucket"},
		messages: []string{"nosuchbucket", "specified bucket does not exist"},
	}
	// 凭证与权限错误重试无效，导出任务应直接放弃。
	permanent = errorClass{
		codes:    []string{"accessdenied", "invalidaccesskeyid", "signaturedoesnotmatch", "nosuchbucket"},
		messages: []string{"access denied", "invalidaccesskeyid", "signature we calculated does not match"},
	}
)

func (c errorClass) match(err error) bool {
	if err == nil {
		return false
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		code := strings.ToLower(strings.TrimSpace(resp.Code))
		for _, want := range c.codes {
			if code == want {
				return true
			}
		}
	}
	lower := strings.ToLower(err.Error())
	for _, fragment := range c.messages {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// IsNoSuchKey 判断错误是否表示对象不存在。
func IsNoSuchKey(err error) bool { return noSuchKey.match(err) }

// IsNoSuchBucket 判断错误是否表示 Bucket 不存在。
func IsNoSuchBucket(err error) bool { return noSuchBucket.match(err) }

// IsPermanent 判断错误是否为配置类错误（凭证、权限、Bucket 缺失），重试不会成功。
func IsPermanent(err error) bool { return permanent.match(err) }
