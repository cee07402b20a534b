/*
 Copyright (C) 2024-2026, The meshsync Go Library Authors

 This file is part of meshsync: A Go Library for Offline-Tolerant
 Mesh Synchronization.

 meshsync is free software; you can redistribute it and/or
 modify it under the terms of the GNU Lesser General Public
 License as published by the Free Software Foundation; either
 version 2.1 of the License, or any later version.

 meshsync is distributed in the hope that it will be useful,
 but WITHOUT ANY WARRANTY; without even the implied warranty of
 MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
 See the GNU Lesser General Public License for more details.

 A copy of the GNU Lesser General Public License is provided by this
 library under LICENSE.md. If absent, it can be found within the
 GitHub repository:
          https://github.com/opencourier/meshsync
*/

package storage

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"

	bolt "go.etcd.io/bbolt"
)

// BoltStore is the durable Store: a single bbolt bucket in one file.
// Values returned by Get are copies and stay valid after the call.
type BoltStore struct {
	handle *bolt.DB
	bucket []byte
}

func NewBoltStore(path string, bucket []byte) (*BoltStore, error) {
	path = resolvePath(path)
	if err := ensureDirectory(path); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{handle: db, bucket: bucket}, nil
}

func (bs *BoltStore) Put(key []byte, value []byte) error {
	return bs.handle.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bs.bucket).Put(key, value)
	})
}

func (bs *BoltStore) Get(key []byte) ([]byte, error) {
	var val []byte
	err := bs.handle.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bs.bucket).Get(key)
		if v == nil {
			return ErrNotFound
		}
		val = make([]byte, len(v))
		copy(val, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (bs *BoltStore) Delete(key []byte) error {
	return bs.handle.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bs.bucket).Delete(key)
	})
}

func (bs *BoltStore) Clear() error {
	return bs.handle.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bs.bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bs.bucket)
		return err
	})
}

func (bs *BoltStore) Keys() ([][]byte, error) {
	var keys [][]byte
	err := bs.handle.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bs.bucket).ForEach(func(k, _ []byte) error {
			key := make([]byte, len(k))
			copy(key, k)
			keys = append(keys, key)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (bs *BoltStore) Close() error {
	return bs.handle.Close()
}

func ensureDirectory(path string) error {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); err != nil {
		return os.MkdirAll(dir, os.ModePerm)
	}
	return nil
}

func resolvePath(path string) string {
	usr, _ := user.Current()
	if path == "~" {
		path = usr.HomeDir
	} else if strings.HasPrefix(path, "~/") {
		path = filepath.Join(usr.HomeDir, path[2:])
	} else if strings.HasPrefix(path, "./") {
		path, _ = filepath.Abs(path)
	}
	return path
}
