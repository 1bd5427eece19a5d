package types

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint 计算内容指纹。指纹只由内容派生，与文件路径、上传顺序无关，
// 因此相同内容无论以何种方式提供都会命中同一缓存键。
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NormalizeText 折叠所有空白后再计算指纹用的规范文本。
// 仅调整空白而语义相同的文本归一到同一结果。
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// ManualJobID 由手动粘贴的岗位描述派生确定性岗位ID。
// 同一段文本重复粘贴（包括空白差异）得到同一个ID。
func ManualJobID(text string) string {
	fp := Fingerprint([]byte(NormalizeText(text)))
	return "job-m-" + fp[:16]
}

// MatchKey 匹配分析在构件缓存中的键，由 (简历指纹, 岗位ID) 对决定
func MatchKey(resumeFingerprint, jobID string) string {
	return "match:" + resumeFingerprint + ":" + jobID
}

// DocumentKey 生成文档的确定性存储键，由身份四元组决定
func DocumentKey(resumeFingerprint, jobID string, kind DocumentKind, format DocumentFormat) string {
	short := resumeFingerprint
	if len(short) > 12 {
		short = short[:12]
	}
	ext := string(format)
	if format == DocumentFormatText {
		ext = "md"
	}
	return short + "/" + jobID + "_" + string(kind) + "." + ext
}
