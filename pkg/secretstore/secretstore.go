package secretstore

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

var (
	ErrNotOpened = errors.New("secretstore: 未打开")
	ErrEmptyKey  = errors.New("secretstore: 键为空")
)

// Store 存放签名私钥、助记词的 badger 封装
// 静态加密由 badger 的 EncryptionKey 提供，这里不做额外加密
type Store struct {
	db *badger.DB
}

// OpenOptions 打开参数
type OpenOptions struct {
	Path          string
	EncryptionKey []byte // 32 字节；为空时不加密（不建议）
	ReadOnly      bool
	InMemory      bool // 测试用，忽略 Path
}

// Open 打开存储
func Open(opts OpenOptions) (*Store, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if strings.TrimSpace(opts.Path) == "" {
			return nil, errors.New("secretstore: path 不能为空")
		}
		bopts = badger.DefaultOptions(opts.Path).WithReadOnly(opts.ReadOnly)
	}
	bopts = bopts.WithLogger(nil)
	if len(opts.EncryptionKey) > 0 {
		// 加密模式下 badger 要求开启索引缓存
		bopts = bopts.
			WithEncryptionKey(opts.EncryptionKey).
			WithIndexCacheSize(100 << 20)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, errors.Wrapf(err, "secretstore: 打开 %s", opts.Path)
	}
	return &Store{db: db}, nil
}

// Close 关闭存储
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func normalizeKey(key string) ([]byte, error) {
	k := []byte(strings.TrimSpace(key))
	if len(k) == 0 {
		return nil, ErrEmptyKey
	}
	return k, nil
}

// GetString 读取键值；键不存在时 found 为 false
func (s *Store) GetString(key string) (val string, found bool, err error) {
	if s == nil || s.db == nil {
		return "", false, ErrNotOpened
	}
	k, err := normalizeKey(key)
	if err != nil {
		return "", false, err
	}
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(v []byte) error {
			val = string(v)
			return nil
		})
	})
	if err != nil {
		return "", false, errors.Wrapf(err, "secretstore: 读取 %s", key)
	}
	return val, found, nil
}

// SetString 写入键值
func (s *Store) SetString(key string, val string) error {
	if s == nil || s.db == nil {
		return ErrNotOpened
	}
	k, err := normalizeKey(key)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, []byte(val))
	})
}

// Delete 删除键，键不存在不算错误
func (s *Store) Delete(key string) error {
	if s == nil || s.db == nil {
		return ErrNotOpened
	}
	k, err := normalizeKey(key)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	})
}

// Keys 列出指定前缀的全部键（只取键，不读值）
func (s *Store) Keys(prefix string) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotOpened
	}
	var out []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			out = append(out, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return out, err
}

// ParseKey 解析 32 字节加密密钥（hex 或 base64）；输入为空返回 nil
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	// 先按 hex 解析，64 个 hex 字符也可能是合法 base64
	if b, err := hex.DecodeString(strings.TrimPrefix(raw, "0x")); err == nil {
		if len(b) != 32 {
			return nil, errors.Errorf("密钥长度必须为 32 字节，实际 %d", len(b))
		}
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		if len(b) != 32 {
			return nil, errors.Errorf("密钥长度必须为 32 字节，实际 %d", len(b))
		}
		return b, nil
	}
	return nil, errors.New("密钥必须是 32 字节的 hex 或 base64")
}
