package sqlinline

const QInsertWebsite = `--sql 8d25f1c9-4b70-4ae3-a6d2-0e97b3c84f15
insert into websites (job_id, site_url, subdomain, created_at, status, domain_id)
values ($1, $2, $3, $4, $5, $6)
on conflict (job_id) do nothing;
`

const QListRecentWebsites = `--sql b49e67a0-3d18-42c5-9f7b-1c80d5e2a693
select job_id, site_url, subdomain, created_at, status, domain_id
from websites
order by created_at desc
limit $1;
`
